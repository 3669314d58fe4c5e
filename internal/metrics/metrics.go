// Package metrics exports engine activity as Prometheus collectors.
//
// A single Metrics value observes the dispatch bus, the inventory ledger,
// the settlement engine and the services; pass it to each of them with
// their WithObserver option or Deps.Observer.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/models"
)

const namespace = "tableside"

type Metrics struct {
	eventsPublished  *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	mailboxDepth     prometheus.Gauge
	consumptions     *prometheus.CounterVec
	shortfalls       *prometheus.CounterVec
	splitsCreated    *prometheus.CounterVec
	partsPaid        *prometheus.CounterVec
	amountCollected  *prometheus.CounterVec
	ordersClosed     *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
	reconcilePending prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Order events published on the dispatch bus",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_deliveries_total",
			Help:      "Event deliveries to subscribers by outcome",
		}, []string{"topic", "result"}),
		mailboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_mailbox_depth",
			Help:      "Events queued for subscribers and not yet delivered",
		}),
		consumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_consumptions_total",
			Help:      "Completed lines whose ingredients were consumed",
		}, []string{"training"}),
		shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_shortfalls_total",
			Help:      "Consumptions rejected for insufficient stock",
		}, []string{"ingredient"}),
		splitsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_created_total",
			Help:      "Split bills created",
		}, []string{"mode"}),
		partsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parts_paid_total",
			Help:      "Split parts paid",
		}, []string{"method"}),
		amountCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_collected_total",
			Help:      "Money collected on split parts, in currency units",
		}, []string{"method"}),
		ordersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_closed_total",
			Help:      "Orders completed or cancelled",
		}, []string{"status", "forced"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Writes that failed and were queued for reconciliation",
		}, []string{"entity"}),
		reconcilePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_pending",
			Help:      "Writes still waiting for reconciliation",
		}),
	}

	reg.MustRegister(
		m.eventsPublished,
		m.deliveries,
		m.mailboxDepth,
		m.consumptions,
		m.shortfalls,
		m.splitsCreated,
		m.partsPaid,
		m.amountCollected,
		m.ordersClosed,
		m.persistFailures,
		m.reconcilePending,
	)
	return m
}

// Dispatch bus.

func (m *Metrics) Published(kind models.EventKind) {
	m.eventsPublished.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Delivered(topic dispatch.Topic) {
	m.deliveries.WithLabelValues(string(topic), "ok").Inc()
}

func (m *Metrics) Failed(topic dispatch.Topic) {
	m.deliveries.WithLabelValues(string(topic), "error").Inc()
}

func (m *Metrics) Pending(delta int) {
	m.mailboxDepth.Add(float64(delta))
}

// Inventory ledger.

func (m *Metrics) Consumed(_ string, training bool) {
	m.consumptions.WithLabelValues(strconv.FormatBool(training)).Inc()
}

func (m *Metrics) Shortfall(ingredientID string) {
	m.shortfalls.WithLabelValues(ingredientID).Inc()
}

// Settlement engine.

func (m *Metrics) SplitCreated(mode models.SplitMode) {
	m.splitsCreated.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) PartPaid(method models.PaymentMethod, amount decimal.Decimal) {
	m.partsPaid.WithLabelValues(string(method)).Inc()
	m.amountCollected.WithLabelValues(string(method)).Add(amount.InexactFloat64())
}

// Services.

func (m *Metrics) OrderClosed(status models.OrderStatus, forced bool) {
	m.ordersClosed.WithLabelValues(string(status), strconv.FormatBool(forced)).Inc()
}

func (m *Metrics) PersistFailed(entity string) {
	m.persistFailures.WithLabelValues(entity).Inc()
}

// ReconcilePending records how many writes are still queued.
func (m *Metrics) ReconcilePending(n int) {
	m.reconcilePending.Set(float64(n))
}
