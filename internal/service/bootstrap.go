package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/tableside/internal/order"
)

// Bootstrap loads the state a restarted process needs: ingredient levels,
// open orders and unpaid splits.
func Bootstrap(ctx context.Context, d *Deps) error {
	ingredients, err := d.Store.ListIngredients(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}
	if err := d.Ledger.Load(ingredients); err != nil {
		return fmt.Errorf("failed to register ingredients: %w", err)
	}

	orders, err := d.Store.ListOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open orders: %w", err)
	}
	for _, o := range orders {
		// Line-only writes do not bump the stored sequence number; the
		// event log does.
		events, err := d.Store.ListEvents(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("failed to load events of order %s: %w", o.ID, err)
		}
		if n := len(events); n > 0 && events[n-1].Seq > o.Seq {
			o.Seq = events[n-1].Seq
		}
		d.Orders.add(order.Restore(o, d.Pricing, d.Bus))
		d.Bus.Board().Restore(o)
	}

	splits, err := d.Store.ListOpenSplits(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open splits: %w", err)
	}
	for _, split := range splits {
		d.Engine.Restore(split)
	}

	slog.Info("State restored",
		"ingredients", len(ingredients),
		"open_orders", len(orders),
		"open_splits", len(splits),
	)
	return nil
}
