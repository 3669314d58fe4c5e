// Package jobs runs periodic maintenance: the low-stock report and the
// retry of writes that failed to reach storage.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mmynk/tableside/internal/inventory"
	"github.com/mmynk/tableside/internal/service"
)

const (
	TagLowStock  = "low-stock"
	TagReconcile = "reconcile"
)

// PendingGauge records the reconciliation backlog.
type PendingGauge interface {
	ReconcilePending(n int)
}

type Config struct {
	LowStockInterval  time.Duration
	ReconcileInterval time.Duration
}

type Scheduler struct {
	ctx     context.Context
	cron    *gocron.Scheduler
	ledger  *inventory.Ledger
	pending *service.Reconciler
	gauge   PendingGauge
}

// NewScheduler registers both jobs. They run in singleton mode, so a slow
// run is never overlapped by the next one. gauge may be nil.
func NewScheduler(ctx context.Context, cfg Config, ledger *inventory.Ledger, pending *service.Reconciler, gauge PendingGauge) (*Scheduler, error) {
	s := &Scheduler{
		ctx:     ctx,
		cron:    gocron.NewScheduler(time.UTC),
		ledger:  ledger,
		pending: pending,
		gauge:   gauge,
	}
	s.cron.SingletonModeAll()

	if _, err := s.cron.Every(cfg.LowStockInterval).Tag(TagLowStock).Do(s.lowStock); err != nil {
		return nil, fmt.Errorf("failed to schedule low-stock report: %w", err)
	}
	if _, err := s.cron.Every(cfg.ReconcileInterval).Tag(TagReconcile).Do(s.reconcile, cfg.ReconcileInterval); err != nil {
		return nil, fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	slog.Info("Scheduler started", "jobs", s.cron.Len())
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) lowStock() {
	ReportLowStock(s.ledger)
}

func (s *Scheduler) reconcile(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	Reconcile(ctx, s.pending, s.gauge)
}

// ReportLowStock logs every ingredient at or below its threshold and
// returns how many there were.
func ReportLowStock(ledger *inventory.Ledger) int {
	n := 0
	for item := range ledger.LowStockReport() {
		slog.Warn("Low stock",
			"ingredient_id", item.IngredientID,
			"name", item.Name,
			"quantity", item.Quantity.String(),
			"min_threshold", item.MinThreshold.String(),
			"deficit", item.Deficit.String(),
			"unit", item.Unit,
		)
		n++
	}
	if n > 0 {
		slog.Info("Low-stock report", "items", n)
	}
	return n
}

// Reconcile retries queued writes and records what is left.
func Reconcile(ctx context.Context, pending *service.Reconciler, gauge PendingGauge) error {
	err := pending.RetryPending(ctx)
	if err != nil {
		slog.Error("Reconciliation incomplete", "pending", pending.Pending(), "error", err)
	}
	if gauge != nil {
		gauge.ReconcilePending(pending.Pending())
	}
	return err
}
