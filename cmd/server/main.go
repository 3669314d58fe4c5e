package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tableside/internal/admin"
	"github.com/mmynk/tableside/internal/config"
	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/inventory"
	"github.com/mmynk/tableside/internal/jobs"
	"github.com/mmynk/tableside/internal/metrics"
	"github.com/mmynk/tableside/internal/middleware"
	"github.com/mmynk/tableside/internal/service"
	"github.com/mmynk/tableside/internal/settlement"
	"github.com/mmynk/tableside/internal/storage/sqlite"
	"github.com/mmynk/tableside/pkg/logging"
)

const (
	eventLogTimeout = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	logging.SetupWithLevel(level)
	if err != nil {
		slog.Warn("Ignoring LOG_LEVEL", "error", err)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	bus := dispatch.New(dispatch.WithObserver(m))
	deps := &service.Deps{
		Store:    store,
		Bus:      bus,
		Ledger:   inventory.New(store, inventory.WithObserver(m), inventory.WithTrainingMode(cfg.TrainingMode)),
		Engine:   settlement.New(cfg.CurrencyScale, settlement.WithObserver(m)),
		Pricing:  cfg.Pricing(),
		Orders:   service.NewOrders(),
		Pending:  service.NewReconciler(store),
		Observer: m,
	}
	if err := service.Bootstrap(ctx, deps); err != nil {
		return err
	}

	logger := slog.Default()
	bus.Subscribe(dispatch.TopicOrderEvents, service.EventLogSink(store, eventLogTimeout))
	bus.Subscribe(dispatch.TopicOrderEvents, service.KitchenDisplaySink(logger.With("sink", "kitchen-display")))
	bus.Subscribe(dispatch.TopicItemReady, service.PagerSink(logger.With("sink", "pager"), bus.Board()))

	sched, err := jobs.NewScheduler(ctx, jobs.Config{
		LowStockInterval:  cfg.LowStockInterval,
		ReconcileInterval: cfg.ReconcileInterval,
	}, deps.Ledger, deps.Pending, m)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr: cfg.MetricsAddr,
		Handler: admin.NewHandler(admin.Deps{
			Gatherer:    reg,
			HTTPMetrics: middleware.NewHTTPMetrics(reg),
			Kitchen:     service.NewKitchenService(deps),
			Ledger:      deps.Ledger,
			Pending:     deps.Pending,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Admin server starting", "address", cfg.MetricsAddr, "training_mode", cfg.TrainingMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs := []error{srv.Shutdown(shutdownCtx)}
		if err := bus.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain event bus: %w", err))
		}
		if err := jobs.Reconcile(shutdownCtx, deps.Pending, m); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
