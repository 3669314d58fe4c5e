package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// LineStatus is the fulfillment state of a single order line.
type LineStatus string

const (
	LinePending   LineStatus = "PENDING"
	LineCooking   LineStatus = "COOKING"
	LineReady     LineStatus = "READY"
	LineServed    LineStatus = "SERVED"
	LineCancelled LineStatus = "CANCELLED"
)

// Final reports whether no further transition can leave this status.
func (s LineStatus) Final() bool {
	return s == LineServed || s == LineCancelled
}

// Order is one table's order and its monetary totals.
// The totals always satisfy Total = Subtotal - Discount + Tax + ServiceCharge.
type Order struct {
	// ID is the unique identifier for the order (UUID format).
	ID string

	// TableID references the table the order was opened for.
	TableID string

	// StaffID is the staff member who opened the order.
	StaffID string

	// Guests is the number of guests seated at the table.
	Guests int

	// Lines are kept in the order they were added, cancelled lines included.
	Lines []OrderLine

	// Subtotal is the sum of the subtotals of all non-cancelled lines.
	Subtotal decimal.Decimal

	// Discount is the fixed discount applied to the subtotal.
	Discount decimal.Decimal

	// Tax is computed on Subtotal - Discount.
	Tax decimal.Decimal

	// ServiceCharge is computed on Subtotal - Discount.
	ServiceCharge decimal.Decimal

	// Total is the amount payable.
	Total decimal.Decimal

	Status OrderStatus

	OpenedAt time.Time
	ClosedAt time.Time

	// CancelReason is set when the order is cancelled.
	CancelReason string

	// ForcedBy and ForceReason record a completion that bypassed the
	// all-lines-served check. UnservedLineIDs lists the lines written off.
	ForcedBy        string
	ForceReason     string
	UnservedLineIDs []string

	// Seq is the sequence number of the last event published for this order.
	Seq uint64
}

// OrderLine is one product entry within an order.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string

	// Quantity is at least 1 while the line is not cancelled.
	Quantity int

	// UnitPrice is captured from the catalog when the line is added and never changes.
	UnitPrice decimal.Decimal

	// Subtotal is UnitPrice × Quantity.
	Subtotal decimal.Decimal

	Notes  string
	Status LineStatus

	// SentToKitchenAt is when the line reached the kitchen queue.
	SentToKitchenAt time.Time

	// CompletedAt is when the kitchen marked the line ready.
	CompletedAt time.Time
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() Order {
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	c.UnservedLineIDs = append([]string(nil), o.UnservedLineIDs...)
	return c
}

// Line returns the line with the given ID.
func (o *Order) Line(lineID string) (OrderLine, bool) {
	for _, l := range o.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return OrderLine{}, false
}

// ActiveLines returns the lines that are not cancelled.
func (o *Order) ActiveLines() []OrderLine {
	var lines []OrderLine
	for _, l := range o.Lines {
		if l.Status != LineCancelled {
			lines = append(lines, l)
		}
	}
	return lines
}
