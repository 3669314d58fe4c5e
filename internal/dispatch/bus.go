// Package dispatch routes order events from the order aggregates to kitchen
// displays and front-of-house listeners inside one process.
//
// Every subscription owns a FIFO mailbox drained by its own goroutine, so
// Publish only appends and never waits on a callback. A slow or stuck
// subscriber delays nobody but itself, and a single subscriber sees the events
// of one order in publish order.
//
// The subscriber registry is copy-on-write: Publish reads an immutable
// snapshot, and Subscribe/Unsubscribe swap in a new one. Callbacks may
// subscribe or unsubscribe without deadlocking.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mmynk/tableside/internal/models"
)

// Topic selects which events a subscription receives.
type Topic string

const (
	// TopicOrderEvents receives every order event.
	TopicOrderEvents Topic = "order-events"
	// TopicItemReady receives only lines moving to READY.
	TopicItemReady Topic = "item-ready"
)

func (t Topic) matches(ev models.Event) bool {
	switch t {
	case TopicOrderEvents:
		return true
	case TopicItemReady:
		return ev.IsItemReady()
	default:
		return false
	}
}

// Handler is a notification sink. A returned error is logged and dropped.
type Handler func(kind models.EventKind, ev models.Event) error

// Observer receives bus activity counts. The metrics package implements it.
type Observer interface {
	Published(kind models.EventKind)
	Delivered(topic Topic)
	Failed(topic Topic)
	Pending(delta int)
}

type nopObserver struct{}

func (nopObserver) Published(models.EventKind) {}
func (nopObserver) Delivered(Topic)            {}
func (nopObserver) Failed(Topic)               {}
func (nopObserver) Pending(int)                {}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for callback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithObserver sets the activity observer.
func WithObserver(obs Observer) Option {
	return func(b *Bus) { b.obs = obs }
}

// Bus is an in-process multi-producer, multi-consumer event router.
type Bus struct {
	writeMu sync.Mutex
	subs    atomic.Pointer[[]*Subscription]

	board  *Board
	logger *slog.Logger
	obs    Observer

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		board:  NewBoard(),
		logger: slog.Default(),
		obs:    nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	empty := []*Subscription{}
	b.subs.Store(&empty)
	return b
}

// Board returns the bus's view of in-kitchen and ready orders.
func (b *Bus) Board() *Board {
	return b.board
}

// Publish updates the board and queues ev for every matching subscriber.
// It never waits on a subscriber.
func (b *Bus) Publish(ev models.Event) {
	if b.closed.Load() {
		b.logger.Warn("Event published after bus closed", "kind", ev.Kind, "order_id", ev.OrderID)
		return
	}

	b.board.apply(ev)
	b.obs.Published(ev.Kind)

	for _, sub := range *b.subs.Load() {
		if sub.topic.matches(ev) && sub.box.push(ev) {
			b.obs.Pending(1)
		}
	}
}

// Subscribe registers handler for topic. Every event published after
// Subscribe returns is delivered until the subscription is cancelled.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	sub := &Subscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		bus:     b,
		box:     newMailbox(),
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.closed.Load() {
		sub.cancelled.Store(true)
		sub.box.stop()
		return sub
	}

	cur := *b.subs.Load()
	next := make([]*Subscription, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, sub)
	b.subs.Store(&next)

	b.wg.Add(1)
	go sub.run()

	b.logger.Debug("Subscriber registered", "subscription_id", sub.id, "topic", topic)
	return sub
}

// Unsubscribe cancels sub. It is idempotent and safe to call from within a
// callback; it does not wait for an in-flight callback to return.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.cancelled.CompareAndSwap(false, true) {
		return
	}

	b.writeMu.Lock()
	cur := *b.subs.Load()
	next := make([]*Subscription, 0, len(cur))
	for _, s := range cur {
		if s != sub {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
	b.writeMu.Unlock()

	if dropped := sub.box.stop(); dropped > 0 {
		b.obs.Pending(-dropped)
	}
	b.logger.Debug("Subscriber removed", "subscription_id", sub.id, "topic", sub.topic)
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	return len(*b.subs.Load())
}

// Close stops accepting events, lets every subscriber drain its mailbox and
// waits for them, or for ctx to end.
func (b *Bus) Close(ctx context.Context) error {
	b.writeMu.Lock()
	b.closed.Store(true)
	for _, sub := range *b.subs.Load() {
		sub.box.drain()
	}
	b.writeMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain subscribers: %w", ctx.Err())
	}
}

// deliver runs one callback, isolating errors and panics.
func (b *Bus) deliver(sub *Subscription, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.obs.Failed(sub.topic)
			b.logger.Error("Subscriber panicked",
				"subscription_id", sub.id,
				"topic", sub.topic,
				"kind", ev.Kind,
				"order_id", ev.OrderID,
				"panic", r,
			)
		}
	}()

	if err := sub.handler(ev.Kind, ev); err != nil {
		b.obs.Failed(sub.topic)
		b.logger.Warn("Subscriber failed",
			"subscription_id", sub.id,
			"topic", sub.topic,
			"kind", ev.Kind,
			"order_id", ev.OrderID,
			"error", err,
		)
		return
	}
	b.obs.Delivered(sub.topic)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id      string
	topic   Topic
	handler Handler
	bus     *Bus
	box     *mailbox

	cancelled atomic.Bool
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// Pending returns the number of events queued but not yet delivered.
func (s *Subscription) Pending() int { return s.box.depth() }

// Unsubscribe is shorthand for Bus.Unsubscribe.
func (s *Subscription) Unsubscribe() { s.bus.Unsubscribe(s) }

func (s *Subscription) run() {
	defer s.bus.wg.Done()
	for {
		ev, ok := s.box.pop()
		if !ok {
			return
		}
		s.bus.obs.Pending(-1)
		if s.cancelled.Load() {
			continue
		}
		s.bus.deliver(s, ev)
	}
}
