// Package calculator holds the fixed-point arithmetic behind bill splitting.
// All functions work at a currency scale: scale 0 means whole units,
// scale 2 means hundredths.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit returns the smallest currency unit at the given scale.
func Unit(scale int32) decimal.Decimal {
	return decimal.New(1, -scale)
}

// CeilDiv divides amount by n and rounds the quotient up to the scale.
func CeilDiv(amount decimal.Decimal, n int64, scale int32) decimal.Decimal {
	q, r := amount.QuoRem(decimal.NewFromInt(n), scale)
	if r.Sign() > 0 {
		q = q.Add(Unit(scale))
	}
	return q
}

// FloorDiv divides amount by n and rounds the quotient down to the scale.
func FloorDiv(amount decimal.Decimal, n int64, scale int32) decimal.Decimal {
	q, r := amount.QuoRem(decimal.NewFromInt(n), scale)
	if r.Sign() < 0 {
		q = q.Sub(Unit(scale))
	}
	return q
}

// Shares divides total into n shares that sum to total exactly.
// Shares 1..n-1 receive the ceiling quotient and share n receives the remainder.
// When the ceiling quotient would leave nothing for share n, the floor
// quotient is used instead so the last share is never negative.
func Shares(total decimal.Decimal, n int, scale int32) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("must have at least one share")
	}
	if total.Sign() < 0 {
		return nil, fmt.Errorf("total cannot be negative")
	}

	rest := decimal.NewFromInt(int64(n - 1))
	share := CeilDiv(total, int64(n), scale)
	last := total.Sub(share.Mul(rest))
	if last.Sign() <= 0 && n > 1 {
		share = FloorDiv(total, int64(n), scale)
		last = total.Sub(share.Mul(rest))
	}

	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = last
	return shares, nil
}

// Partition is Shares with the extra guarantee that every share is at least
// one currency unit. It fails when total holds fewer units than n.
func Partition(total decimal.Decimal, n int, scale int32) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("must have at least one part")
	}
	if total.LessThan(Unit(scale).Mul(decimal.NewFromInt(int64(n)))) {
		return nil, fmt.Errorf("cannot split %s into %d parts of at least %s", total, n, Unit(scale))
	}
	return Shares(total, n, scale)
}

// Item is a priced line considered for charge allocation.
type Item struct {
	LineID   string
	Subtotal decimal.Decimal
}

// AllocateCharges spreads an order's discount, tax and service charge across
// its items in proportion to their subtotals:
//
//	item_total = item_subtotal × (order_total / order_subtotal)
//
// Each item total is rounded to the scale and the last item absorbs the
// rounding remainder, so the item totals sum to orderTotal exactly when the
// items cover the whole subtotal.
func AllocateCharges(items []Item, orderSubtotal, orderTotal decimal.Decimal, scale int32) ([]decimal.Decimal, error) {
	if orderSubtotal.Sign() == 0 {
		return nil, fmt.Errorf("subtotal cannot be zero")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("must have at least one item")
	}

	covered := decimal.Zero
	for _, item := range items {
		covered = covered.Add(item.Subtotal)
	}

	totals := make([]decimal.Decimal, len(items))
	allocated := decimal.Zero
	for i, item := range items {
		totals[i] = item.Subtotal.Mul(orderTotal).DivRound(orderSubtotal, scale)
		allocated = allocated.Add(totals[i])
	}

	if covered.Equal(orderSubtotal) {
		last := len(totals) - 1
		totals[last] = totals[last].Add(orderTotal.Sub(allocated))
	}
	return totals, nil
}

// LineTotal is AllocateCharges for a single line.
func LineTotal(lineSubtotal, orderSubtotal, orderTotal decimal.Decimal, scale int32) (decimal.Decimal, error) {
	totals, err := AllocateCharges([]Item{{Subtotal: lineSubtotal}}, orderSubtotal, orderTotal, scale)
	if err != nil {
		return decimal.Zero, err
	}
	return totals[0], nil
}
