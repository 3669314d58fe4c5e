package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names what happened to an order.
type EventKind string

const (
	EventOrderOpened         EventKind = "order.opened"
	EventLineAdded           EventKind = "line.added"
	EventLineQuantityChanged EventKind = "line.quantity_changed"
	EventLineStatusChanged   EventKind = "line.status_changed"
	EventDiscountChanged     EventKind = "order.discount_changed"
	EventOrderCompleted      EventKind = "order.completed"
	EventOrderCancelled      EventKind = "order.cancelled"
)

// Event is an immutable record of one committed order mutation.
// Fields that do not apply to the kind are left zero.
type Event struct {
	Kind    EventKind
	OrderID string
	TableID string

	// Seq increases by one for every event of the same order.
	Seq uint64

	LineID    string
	ProductID string
	Quantity  int
	From      LineStatus
	To        LineStatus

	// Total is the order total after the mutation.
	Total decimal.Decimal

	// Forced marks an order completion that wrote off unserved lines.
	Forced bool
	Reason string

	At time.Time
}

// IsItemReady reports whether the event moved a line to READY.
func (e Event) IsItemReady() bool {
	return e.Kind == EventLineStatusChanged && e.To == LineReady
}
