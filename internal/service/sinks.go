package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/storage"
)

// EventLogSink returns a bus handler that appends every event to the
// audit log. Each write gets its own timeout.
func EventLogSink(log storage.EventLog, timeout time.Duration) dispatch.Handler {
	return func(kind models.EventKind, ev models.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := log.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to log %s event of order %s: %w", kind, ev.OrderID, err)
		}
		return nil
	}
}

// KitchenDisplaySink returns a bus handler that renders kitchen tickets as
// log lines.
func KitchenDisplaySink(logger *slog.Logger) dispatch.Handler {
	return func(kind models.EventKind, ev models.Event) error {
		switch kind {
		case models.EventLineAdded:
			logger.Info("New ticket line",
				"table_id", ev.TableID,
				"order_id", ev.OrderID,
				"line_id", ev.LineID,
				"product_id", ev.ProductID,
				"quantity", ev.Quantity,
			)
		case models.EventLineQuantityChanged:
			logger.Info("Ticket line changed",
				"table_id", ev.TableID,
				"line_id", ev.LineID,
				"quantity", ev.Quantity,
			)
		case models.EventLineStatusChanged:
			if ev.To == models.LineCancelled {
				logger.Info("Ticket line cancelled", "table_id", ev.TableID, "line_id", ev.LineID)
			}
		case models.EventOrderCancelled:
			logger.Info("Ticket voided", "table_id", ev.TableID, "order_id", ev.OrderID, "reason", ev.Reason)
		}
		return nil
	}
}

// PagerSink returns a bus handler for the item-ready topic that pages the
// floor with what is waiting for a table.
func PagerSink(logger *slog.Logger, board *dispatch.Board) dispatch.Handler {
	return func(_ models.EventKind, ev models.Event) error {
		waiting := 0
		for _, ro := range board.OrdersReadyForTable(ev.TableID) {
			waiting += len(ro.LineIDs)
		}
		logger.Info("Item ready for pickup",
			"table_id", ev.TableID,
			"order_id", ev.OrderID,
			"line_id", ev.LineID,
			"waiting_at_pass", waiting,
		)
		return nil
	}
}
