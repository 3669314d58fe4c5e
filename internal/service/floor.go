package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/order"
	"github.com/mmynk/tableside/internal/session"
)

// FloorService is used by waiters: opening tables, taking orders, serving
// and closing them.
type FloorService struct {
	deps *Deps

	// openMu serializes OpenTable so a table never gets two open orders.
	openMu sync.Mutex
}

// NewFloorService creates a FloorService.
func NewFloorService(deps *Deps) *FloorService {
	return &FloorService{deps: deps}
}

// OpenTable returns the open order of a table, starting one if there is
// none in memory or in storage.
func (s *FloorService) OpenTable(ctx context.Context, tableID string, guests int) (models.Order, error) {
	if tableID == "" {
		return models.Order{}, apperr.ErrMissingTable
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	if a, ok := s.deps.Orders.ForTable(tableID); ok {
		return a.Snapshot(), nil
	}

	stored, err := s.deps.Store.LoadOpenOrder(ctx, tableID)
	if err != nil {
		slog.Error("LoadOpenOrder failed", "table_id", tableID, "error", err)
		return models.Order{}, fmt.Errorf("failed to load open order: %w", err)
	}
	if stored != nil {
		a := s.deps.Orders.add(order.Restore(*stored, s.deps.Pricing, s.deps.Bus))
		slog.Info("Open order restored", "order_id", stored.ID, "table_id", tableID)
		return a.Snapshot(), nil
	}

	a := s.deps.Orders.add(order.Open(ctx, tableID, guests, s.deps.Pricing, s.deps.Bus))
	persistOrder(ctx, s.deps, a)

	snap := a.Snapshot()
	slog.Info("Table opened",
		"order_id", snap.ID,
		"table_id", tableID,
		"guests", guests,
		"staff_id", session.StaffID(ctx),
	)
	return snap, nil
}

// Order returns the current state of an order.
func (s *FloorService) Order(orderID string) (models.Order, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.Order{}, err
	}
	return a.Snapshot(), nil
}

// AddItem adds a product at its catalog price.
func (s *FloorService) AddItem(ctx context.Context, orderID, productID string, quantity int, notes string) (models.OrderLine, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.OrderLine{}, err
	}

	price, err := s.deps.Store.PriceOf(ctx, productID)
	if err != nil {
		slog.Error("PriceOf failed", "product_id", productID, "error", err)
		return models.OrderLine{}, err
	}

	line, err := a.AddLine(productID, price, quantity, notes)
	if err != nil {
		return models.OrderLine{}, err
	}
	persistOrder(ctx, s.deps, a)

	slog.Debug("Item added",
		"order_id", orderID,
		"line_id", line.ID,
		"product_id", productID,
		"quantity", quantity,
	)
	return line, nil
}

// ChangeQuantity updates a line's quantity; zero or less removes it.
func (s *FloorService) ChangeQuantity(ctx context.Context, orderID, lineID string, quantity int) (models.OrderLine, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.OrderLine{}, err
	}
	line, err := a.ChangeLineQuantity(lineID, quantity)
	if err != nil {
		return models.OrderLine{}, err
	}
	persistOrder(ctx, s.deps, a)
	return line, nil
}

// RemoveItem cancels a line that has not been served.
func (s *FloorService) RemoveItem(ctx context.Context, orderID, lineID string) (models.OrderLine, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.OrderLine{}, err
	}
	line, err := a.RemoveLine(lineID)
	if err != nil {
		return models.OrderLine{}, err
	}
	persistOrder(ctx, s.deps, a)
	return line, nil
}

// ServeLine marks a READY line as SERVED.
func (s *FloorService) ServeLine(ctx context.Context, orderID, lineID string) (models.OrderLine, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.OrderLine{}, err
	}
	line, err := a.AdvanceLineStatus(lineID, models.LineServed)
	if err != nil {
		return models.OrderLine{}, err
	}
	persistLine(ctx, s.deps, a, line)
	return line, nil
}

// SetDiscount applies a fixed discount to an order.
func (s *FloorService) SetDiscount(ctx context.Context, orderID string, amount decimal.Decimal) (models.Order, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := a.SetDiscount(amount); err != nil {
		return models.Order{}, err
	}
	persistOrder(ctx, s.deps, a)
	return a.Snapshot(), nil
}

// Complete closes an order whose lines are all served.
func (s *FloorService) Complete(ctx context.Context, orderID string) (models.Order, error) {
	return s.close(ctx, orderID, func(a *order.Aggregate) error { return a.Complete() })
}

// ForceComplete closes an order with unserved lines, e.g. after a walk-out.
func (s *FloorService) ForceComplete(ctx context.Context, orderID, reason string) (models.Order, error) {
	return s.close(ctx, orderID, func(a *order.Aggregate) error { return a.ForceComplete(ctx, reason) })
}

// Cancel voids an order and drops it from the live registry.
func (s *FloorService) Cancel(ctx context.Context, orderID, reason string) (models.Order, error) {
	return s.close(ctx, orderID, func(a *order.Aggregate) error { return a.Cancel(ctx, reason) })
}

func (s *FloorService) close(ctx context.Context, orderID string, fn func(*order.Aggregate) error) (models.Order, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := fn(a); err != nil {
		return models.Order{}, err
	}
	s.deps.Orders.closed(a)
	persistOrder(ctx, s.deps, a)

	snap := a.Snapshot()
	if snap.Status == models.OrderCancelled {
		// Nothing is left to settle; the stored copy answers later reads.
		s.deps.Orders.Forget(snap.ID)
	}
	s.deps.observer().OrderClosed(snap.Status, snap.ForceReason != "" && len(snap.UnservedLineIDs) > 0)
	slog.Info("Order closed",
		"order_id", snap.ID,
		"table_id", snap.TableID,
		"status", snap.Status,
		"total", snap.Total.String(),
	)
	return snap, nil
}
