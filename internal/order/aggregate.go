// Package order implements the order aggregate: one table's order, its lines,
// and the line state machine.
//
// An Aggregate serializes its own mutations with a per-order mutex. Every
// successful mutation recomputes the totals, refreshes a read-only snapshot,
// and then publishes an event. Failed mutations change nothing and publish
// nothing.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/session"
)

// Publisher receives the events of committed mutations.
// Publish must not block for longer than a bounded fan-out.
type Publisher interface {
	Publish(ev models.Event)
}

// Pricing controls how tax and service charge are derived from the subtotal.
type Pricing struct {
	// TaxRate and ServiceChargeRate are fractions (0.1 = 10%).
	TaxRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal

	// Scale is the number of decimal places of the smallest currency unit.
	Scale int32
}

// TransitionHook runs under the order lock once a line transition has been
// found legal and before it is committed. A hook error aborts the transition.
type TransitionHook func(line models.OrderLine, target models.LineStatus) error

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregate) { a.now = now }
}

// WithLogger sets the logger used for audit messages.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregate) { a.logger = logger }
}

// Aggregate owns one order and all of its lines.
type Aggregate struct {
	mu      sync.Mutex
	order   models.Order
	pricing Pricing
	pub     Publisher
	logger  *slog.Logger
	now     func() time.Time

	snapshot atomic.Pointer[models.Order]
}

func newAggregate(o models.Order, pricing Pricing, pub Publisher, opts []Option) *Aggregate {
	a := &Aggregate{
		order:   o,
		pricing: pricing,
		pub:     pub,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open starts a new order for a table. The staff member is taken from ctx.
func Open(ctx context.Context, tableID string, guests int, pricing Pricing, pub Publisher, opts ...Option) *Aggregate {
	a := newAggregate(models.Order{
		ID:      uuid.New().String(),
		TableID: tableID,
		StaffID: session.StaffID(ctx),
		Guests:  guests,
		Status:  models.OrderOpen,
	}, pricing, pub, opts)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.order.OpenedAt = a.now()
	a.recompute()
	a.commit(models.Event{Kind: models.EventOrderOpened})
	return a
}

// Restore wraps an order loaded from storage. No event is published.
func Restore(o models.Order, pricing Pricing, pub Publisher, opts ...Option) *Aggregate {
	a := newAggregate(o.Clone(), pricing, pub, opts)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recompute()
	a.refreshSnapshot()
	return a
}

// ID returns the order ID.
func (a *Aggregate) ID() string {
	return a.Snapshot().ID
}

// Snapshot returns a copy of the last committed state without taking the order lock.
func (a *Aggregate) Snapshot() models.Order {
	return a.snapshot.Load().Clone()
}

// AddLine appends a PENDING line priced at unitPrice.
func (a *Aggregate) AddLine(productID string, unitPrice decimal.Decimal, quantity int, notes string) (models.OrderLine, error) {
	if quantity < 1 {
		return models.OrderLine{}, fmt.Errorf("%w: got %d", apperr.ErrInvalidQuantity, quantity)
	}
	if unitPrice.Sign() < 0 {
		return models.OrderLine{}, fmt.Errorf("%w: got %s", apperr.ErrInvalidPrice, unitPrice)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return models.OrderLine{}, err
	}

	line := models.OrderLine{
		ID:              uuid.New().String(),
		OrderID:         a.order.ID,
		ProductID:       productID,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		Subtotal:        unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Notes:           notes,
		Status:          models.LinePending,
		SentToKitchenAt: a.now(),
	}
	a.order.Lines = append(a.order.Lines, line)
	a.recompute()
	a.commit(models.Event{
		Kind:      models.EventLineAdded,
		LineID:    line.ID,
		ProductID: productID,
		Quantity:  quantity,
		To:        models.LinePending,
	})
	return line, nil
}

// ChangeLineQuantity sets a line's quantity. A quantity of zero or less
// removes the line instead.
func (a *Aggregate) ChangeLineQuantity(lineID string, quantity int) (models.OrderLine, error) {
	if quantity <= 0 {
		return a.RemoveLine(lineID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return models.OrderLine{}, err
	}

	i := a.lineIndex(lineID)
	if i < 0 || a.order.Lines[i].Status.Final() {
		return models.OrderLine{}, fmt.Errorf("%w: %s", apperr.ErrLineNotFound, lineID)
	}

	line := &a.order.Lines[i]
	line.Quantity = quantity
	line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	a.recompute()
	a.commit(models.Event{
		Kind:      models.EventLineQuantityChanged,
		LineID:    line.ID,
		ProductID: line.ProductID,
		Quantity:  quantity,
		From:      line.Status,
		To:        line.Status,
	})
	return *line, nil
}

// RemoveLine cancels a line. The line stays on the order but no longer
// counts toward the subtotal.
func (a *Aggregate) RemoveLine(lineID string) (models.OrderLine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return models.OrderLine{}, err
	}

	i := a.lineIndex(lineID)
	if i < 0 {
		return models.OrderLine{}, fmt.Errorf("%w: %s", apperr.ErrLineNotFound, lineID)
	}
	if a.order.Lines[i].Status.Final() {
		return models.OrderLine{}, fmt.Errorf("%w: %s is %s", apperr.ErrLineAlreadyFinal, lineID, a.order.Lines[i].Status)
	}
	return a.transition(i, models.LineCancelled, nil)
}

// AdvanceLineStatus moves a line to target. The only legal moves are
// PENDING→COOKING→READY→SERVED, plus PENDING→CANCELLED and COOKING→CANCELLED.
// Hooks run after the move is found legal; if one fails the line is unchanged.
func (a *Aggregate) AdvanceLineStatus(lineID string, target models.LineStatus, hooks ...TransitionHook) (models.OrderLine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return models.OrderLine{}, err
	}

	i := a.lineIndex(lineID)
	if i < 0 {
		return models.OrderLine{}, fmt.Errorf("%w: %s", apperr.ErrLineNotFound, lineID)
	}
	return a.transition(i, target, hooks)
}

// SetDiscount applies a fixed discount to the order.
func (a *Aggregate) SetDiscount(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return err
	}
	if amount.Sign() < 0 || amount.GreaterThan(a.order.Subtotal) {
		return fmt.Errorf("%w: %s against subtotal %s", apperr.ErrInvalidDiscount, amount, a.order.Subtotal)
	}

	a.order.Discount = amount
	a.recompute()
	a.commit(models.Event{Kind: models.EventDiscountChanged})
	return nil
}

// Complete closes the order. Every non-cancelled line must be SERVED.
func (a *Aggregate) Complete() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return err
	}

	if unserved := a.unservedLines(); len(unserved) > 0 {
		return fmt.Errorf("%w: %d line(s) not served", apperr.ErrUnservedItems, len(unserved))
	}

	a.order.Status = models.OrderCompleted
	a.order.ClosedAt = a.now()
	a.commit(models.Event{Kind: models.EventOrderCompleted})
	return nil
}

// ForceComplete closes the order even if lines are unserved, e.g. to write
// off a walk-out. The reason, the acting staff member and the unserved lines
// are recorded on the order and logged.
func (a *Aggregate) ForceComplete(ctx context.Context, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: force completion", apperr.ErrMissingReason)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return err
	}

	unserved := a.unservedLines()
	staffID := session.StaffID(ctx)
	a.order.Status = models.OrderCompleted
	a.order.ClosedAt = a.now()
	a.order.ForcedBy = staffID
	a.order.ForceReason = reason
	a.order.UnservedLineIDs = unserved

	a.logger.Warn("Order force-completed",
		"order_id", a.order.ID,
		"table_id", a.order.TableID,
		"staff_id", staffID,
		"station", session.Station(ctx),
		"reason", reason,
		"unserved_lines", unserved,
		"total", a.order.Total.String(),
	)

	a.commit(models.Event{
		Kind:   models.EventOrderCompleted,
		Forced: len(unserved) > 0,
		Reason: reason,
	})
	return nil
}

// Cancel voids the order. Lines still PENDING or COOKING are cancelled;
// READY and SERVED lines keep their status.
func (a *Aggregate) Cancel(ctx context.Context, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation", apperr.ErrMissingReason)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOpen(); err != nil {
		return err
	}

	for i := range a.order.Lines {
		if canTransition(a.order.Lines[i].Status, models.LineCancelled) {
			a.order.Lines[i].Status = models.LineCancelled
		}
	}
	a.order.Status = models.OrderCancelled
	a.order.ClosedAt = a.now()
	a.order.CancelReason = reason
	a.recompute()

	a.logger.Info("Order cancelled",
		"order_id", a.order.ID,
		"staff_id", session.StaffID(ctx),
		"reason", reason,
	)
	a.commit(models.Event{Kind: models.EventOrderCancelled, Reason: reason})
	return nil
}

// transition applies a legal line move. Caller holds a.mu.
func (a *Aggregate) transition(i int, target models.LineStatus, hooks []TransitionHook) (models.OrderLine, error) {
	line := &a.order.Lines[i]
	from := line.Status
	if !canTransition(from, target) {
		return models.OrderLine{}, fmt.Errorf("%w: line %s %s -> %s", apperr.ErrInvalidTransition, line.ID, from, target)
	}

	for _, hook := range hooks {
		if err := hook(*line, target); err != nil {
			return models.OrderLine{}, err
		}
	}

	line.Status = target
	if target == models.LineReady {
		line.CompletedAt = a.now()
	}
	a.recompute()
	a.commit(models.Event{
		Kind:      models.EventLineStatusChanged,
		LineID:    line.ID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		From:      from,
		To:        target,
	})
	return *line, nil
}

func (a *Aggregate) requireOpen() error {
	if a.order.Status != models.OrderOpen {
		return fmt.Errorf("%w: order %s is %s", apperr.ErrOrderClosed, a.order.ID, a.order.Status)
	}
	return nil
}

func (a *Aggregate) lineIndex(lineID string) int {
	for i := range a.order.Lines {
		if a.order.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (a *Aggregate) unservedLines() []string {
	var ids []string
	for _, l := range a.order.Lines {
		if l.Status != models.LineServed && l.Status != models.LineCancelled {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// recompute restores the total invariants. Caller holds a.mu.
func (a *Aggregate) recompute() {
	subtotal := decimal.Zero
	for _, l := range a.order.Lines {
		if l.Status != models.LineCancelled {
			subtotal = subtotal.Add(l.Subtotal)
		}
	}
	a.order.Subtotal = subtotal

	if a.order.Discount.GreaterThan(subtotal) {
		a.order.Discount = subtotal
	}
	base := subtotal.Sub(a.order.Discount)
	a.order.Tax = base.Mul(a.pricing.TaxRate).Round(a.pricing.Scale)
	a.order.ServiceCharge = base.Mul(a.pricing.ServiceChargeRate).Round(a.pricing.Scale)
	a.order.Total = base.Add(a.order.Tax).Add(a.order.ServiceCharge)
}

// commit refreshes the snapshot and publishes ev. Caller holds a.mu, which
// keeps the events of one order in commit order.
func (a *Aggregate) commit(ev models.Event) {
	a.order.Seq++
	a.refreshSnapshot()

	if a.pub == nil {
		return
	}
	ev.OrderID = a.order.ID
	ev.TableID = a.order.TableID
	ev.Seq = a.order.Seq
	ev.Total = a.order.Total
	ev.At = a.now()
	a.pub.Publish(ev)
}

func (a *Aggregate) refreshSnapshot() {
	snap := a.order.Clone()
	a.snapshot.Store(&snap)
}
