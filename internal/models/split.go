package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitMode is how a bill is partitioned.
type SplitMode string

const (
	SplitEqual  SplitMode = "EQUAL"
	SplitByItem SplitMode = "BY_ITEM"
)

// SplitStatus only moves forward: PENDING → PARTIAL → COMPLETED.
type SplitStatus string

const (
	SplitPending   SplitStatus = "PENDING"
	SplitPartial   SplitStatus = "PARTIAL"
	SplitCompleted SplitStatus = "COMPLETED"
)

// PaymentMethod identifies how a part was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentQR       PaymentMethod = "QR"
)

// SplitBill partitions an order total into payable parts.
type SplitBill struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	// OrderID is the order whose total is being split.
	OrderID string

	Mode SplitMode

	// Parts are numbered 1..N in slice order.
	Parts []SplitBillPart

	// Total is the order total at the time the split was created.
	Total decimal.Decimal

	Status SplitStatus

	CreatedAt time.Time
}

// PartItem is one line's share assigned to a part.
type PartItem struct {
	LineID string
	Amount decimal.Decimal
}

// SplitBillPart is one payable share of a split.
// Once Paid is set, Amount and PayerName no longer change.
type SplitBillPart struct {
	Number    int
	PayerName string
	Amount    decimal.Decimal

	// Items is the per-line breakdown for item splits; empty for equal splits.
	Items []PartItem

	Paid   bool
	Method PaymentMethod
	PaidAt time.Time
}

// Clone returns a deep copy of the split.
func (s *SplitBill) Clone() SplitBill {
	c := *s
	c.Parts = make([]SplitBillPart, len(s.Parts))
	for i, p := range s.Parts {
		p.Items = append([]PartItem(nil), p.Items...)
		c.Parts[i] = p
	}
	return c
}

// Part returns the part with the given number.
func (s *SplitBill) Part(number int) (SplitBillPart, bool) {
	if number < 1 || number > len(s.Parts) {
		return SplitBillPart{}, false
	}
	return s.Parts[number-1], true
}
