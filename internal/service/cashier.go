package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/calculator"
	"github.com/mmynk/tableside/internal/models"
)

// CashierService splits bills and takes payments.
type CashierService struct {
	deps *Deps
}

// NewCashierService creates a CashierService.
func NewCashierService(deps *Deps) *CashierService {
	return &CashierService{deps: deps}
}

// order returns the freshest known state of an order: the live aggregate,
// or the stored copy once the aggregate has been forgotten.
func (s *CashierService) order(ctx context.Context, orderID string) (models.Order, error) {
	if a, err := s.deps.Orders.Get(orderID); err == nil {
		return a.Snapshot(), nil
	}
	o, err := s.deps.Store.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	return *o, nil
}

// SplitEqually divides an order's total into n equal parts.
func (s *CashierService) SplitEqually(ctx context.Context, orderID string, n int) (models.SplitBill, error) {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return models.SplitBill{}, err
	}
	split, err := s.deps.Engine.CreateEqualSplit(o, n)
	if err != nil {
		slog.Warn("CreateEqualSplit rejected", "order_id", orderID, "parts", n, "error", err)
		return models.SplitBill{}, err
	}
	persistSplit(ctx, s.deps, split)
	return split, nil
}

// SplitByItem creates n empty parts to be filled with AssignLine and ShareLine.
func (s *CashierService) SplitByItem(ctx context.Context, orderID string, n int) (models.SplitBill, error) {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return models.SplitBill{}, err
	}
	split, err := s.deps.Engine.CreateItemSplit(o, n)
	if err != nil {
		slog.Warn("CreateItemSplit rejected", "order_id", orderID, "parts", n, "error", err)
		return models.SplitBill{}, err
	}
	persistSplit(ctx, s.deps, split)
	return split, nil
}

// AssignLine puts a whole line, with its share of discount, tax and service
// charge, on one part.
func (s *CashierService) AssignLine(ctx context.Context, splitID, lineID string, partNumber int) (models.SplitBill, error) {
	lineTotal, err := s.lineTotal(ctx, splitID, lineID)
	if err != nil {
		return models.SplitBill{}, err
	}
	if _, err := s.deps.Engine.AssignItemToPart(splitID, lineID, partNumber, lineTotal, 1); err != nil {
		return models.SplitBill{}, err
	}
	return s.saveSplit(ctx, splitID)
}

// ShareLine spreads a line over several parts. The shares add up to the
// line's total exactly.
func (s *CashierService) ShareLine(ctx context.Context, splitID, lineID string, partNumbers []int) (models.SplitBill, error) {
	lineTotal, err := s.lineTotal(ctx, splitID, lineID)
	if err != nil {
		return models.SplitBill{}, err
	}
	if _, err := s.deps.Engine.AssignSharedItem(splitID, lineID, partNumbers, lineTotal); err != nil {
		return models.SplitBill{}, err
	}
	return s.saveSplit(ctx, splitID)
}

// lineTotal is what a line costs once the order's discount and charges are
// spread over all active lines. The line totals of an order add up to the
// order total.
func (s *CashierService) lineTotal(ctx context.Context, splitID, lineID string) (decimal.Decimal, error) {
	split, err := s.deps.Engine.Get(splitID)
	if err != nil {
		return decimal.Zero, err
	}
	o, err := s.order(ctx, split.OrderID)
	if err != nil {
		return decimal.Zero, err
	}

	active := o.ActiveLines()
	items := make([]calculator.Item, len(active))
	idx := -1
	for i, l := range active {
		items[i] = calculator.Item{LineID: l.ID, Subtotal: l.Subtotal}
		if l.ID == lineID {
			idx = i
		}
	}
	if idx < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s on order %s", apperr.ErrLineNotFound, lineID, o.ID)
	}

	totals, err := calculator.AllocateCharges(items, o.Subtotal, o.Total, s.deps.Pricing.Scale)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", apperr.ErrEmptyOrder, err)
	}
	return totals[idx], nil
}

// SetPayer names who pays a part.
func (s *CashierService) SetPayer(ctx context.Context, splitID string, partNumber int, name string) (models.SplitBill, error) {
	if err := s.deps.Engine.SetPayer(splitID, partNumber, name); err != nil {
		return models.SplitBill{}, err
	}
	return s.saveSplit(ctx, splitID)
}

// PayPart records the payment of one part. When the last part is paid the
// order is dropped from the live registry.
func (s *CashierService) PayPart(ctx context.Context, splitID string, partNumber int, method models.PaymentMethod) (models.SplitBill, error) {
	split, err := s.deps.Engine.PayPart(splitID, partNumber, method)
	if err != nil {
		return models.SplitBill{}, err
	}
	persistSplit(ctx, s.deps, split)

	if split.Status == models.SplitCompleted {
		if a, err := s.deps.Orders.Get(split.OrderID); err == nil && a.Snapshot().Status != models.OrderOpen {
			s.deps.Orders.Forget(split.OrderID)
		}
		slog.Info("Split settled", "split_id", split.ID, "order_id", split.OrderID, "total", split.Total.String())
	}
	return split, nil
}

// IsFullyPaid reports whether every part of a split is paid.
func (s *CashierService) IsFullyPaid(splitID string) (bool, error) {
	return s.deps.Engine.IsFullyPaid(splitID)
}

// Split returns the current state of a split.
func (s *CashierService) Split(splitID string) (models.SplitBill, error) {
	return s.deps.Engine.Get(splitID)
}

// Summary reports what has been collected on a split.
func (s *CashierService) Summary(splitID string) (calculator.Summary, error) {
	return s.deps.Engine.Summary(splitID)
}

// Unassigned returns how much of an item split no part covers yet.
func (s *CashierService) Unassigned(splitID string) (decimal.Decimal, error) {
	return s.deps.Engine.Unassigned(splitID)
}

func (s *CashierService) saveSplit(ctx context.Context, splitID string) (models.SplitBill, error) {
	split, err := s.deps.Engine.Get(splitID)
	if err != nil {
		return models.SplitBill{}, err
	}
	persistSplit(ctx, s.deps, split)
	return split, nil
}
