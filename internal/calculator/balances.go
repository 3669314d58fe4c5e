package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PartForSummary is the minimal view of a split part needed for a summary.
type PartForSummary struct {
	Amount decimal.Decimal
	Paid   bool
	Method string
}

// MethodTotal is the amount collected through one payment method.
type MethodTotal struct {
	Method string
	Amount decimal.Decimal
	Count  int
}

// Summary aggregates the payment state of a split.
type Summary struct {
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	PaidParts   int
	OpenParts   int
	ByMethod    []MethodTotal
}

// Summarize totals what has been collected and what is still owed.
// ByMethod is sorted by amount collected, largest first.
func Summarize(parts []PartForSummary) Summary {
	var s Summary
	byMethod := make(map[string]*MethodTotal)

	for _, p := range parts {
		s.Total = s.Total.Add(p.Amount)
		if !p.Paid {
			s.Outstanding = s.Outstanding.Add(p.Amount)
			s.OpenParts++
			continue
		}
		s.Paid = s.Paid.Add(p.Amount)
		s.PaidParts++

		mt, ok := byMethod[p.Method]
		if !ok {
			mt = &MethodTotal{Method: p.Method}
			byMethod[p.Method] = mt
		}
		mt.Amount = mt.Amount.Add(p.Amount)
		mt.Count++
	}

	for _, mt := range byMethod {
		s.ByMethod = append(s.ByMethod, *mt)
	}
	sort.Slice(s.ByMethod, func(i, j int) bool {
		if c := s.ByMethod[i].Amount.Cmp(s.ByMethod[j].Amount); c != 0 {
			return c > 0
		}
		return s.ByMethod[i].Method < s.ByMethod[j].Method
	})
	return s
}
