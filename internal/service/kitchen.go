package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/session"
)

// KitchenService is used by kitchen displays to move lines through
// preparation.
type KitchenService struct {
	deps *Deps
}

// NewKitchenService creates a KitchenService.
func NewKitchenService(deps *Deps) *KitchenService {
	return &KitchenService{deps: deps}
}

// StartCooking moves a PENDING line to COOKING.
func (s *KitchenService) StartCooking(ctx context.Context, orderID, lineID string) (models.OrderLine, error) {
	return s.Advance(ctx, orderID, lineID, models.LineCooking)
}

// MarkReady moves a COOKING line to READY, consuming its ingredients.
func (s *KitchenService) MarkReady(ctx context.Context, orderID, lineID string) (models.OrderLine, error) {
	return s.Advance(ctx, orderID, lineID, models.LineReady)
}

// CancelLine cancels a line that is still PENDING or COOKING.
func (s *KitchenService) CancelLine(ctx context.Context, orderID, lineID string) (models.OrderLine, error) {
	return s.Advance(ctx, orderID, lineID, models.LineCancelled)
}

// Advance moves a line to target. Reaching READY consumes the line's
// ingredients from the ledger while the order is locked; if stock is short
// the line stays COOKING and the *apperr.InsufficientStockError is returned.
func (s *KitchenService) Advance(ctx context.Context, orderID, lineID string, target models.LineStatus) (models.OrderLine, error) {
	a, err := s.deps.Orders.Get(orderID)
	if err != nil {
		return models.OrderLine{}, err
	}

	var consumed []models.StockTransaction
	consume := func(line models.OrderLine, to models.LineStatus) error {
		if to != models.LineReady {
			return nil
		}
		txs, err := s.deps.Ledger.ConsumeForCompletion(ctx, line.ProductID, line.Quantity, line.OrderID)
		if err != nil {
			return err
		}
		consumed = txs
		return nil
	}

	line, err := a.AdvanceLineStatus(lineID, target, consume)
	if err != nil {
		var short *apperr.InsufficientStockError
		if errors.As(err, &short) {
			slog.Warn("Insufficient stock, line stays in the kitchen",
				"order_id", orderID,
				"line_id", lineID,
				"ingredient_id", short.IngredientID,
				"needed", short.Needed.String(),
				"available", short.Available.String(),
				"station", session.Station(ctx),
			)
		}
		return models.OrderLine{}, err
	}

	if line.Status == models.LineCancelled {
		// Cancelling changes the order totals, not just the line.
		persistOrder(ctx, s.deps, a)
	} else {
		persistLine(ctx, s.deps, a, line)
	}
	persistStock(ctx, s.deps, consumed)

	slog.Debug("Line status advanced",
		"order_id", orderID,
		"line_id", lineID,
		"status", line.Status,
		"station", session.Station(ctx),
	)
	return line, nil
}

// Queue returns the orders with lines still to cook.
func (s *KitchenService) Queue() []dispatch.KitchenTicket {
	return s.deps.Bus.Board().InKitchen()
}

// ReadyForTable returns the orders of a table with lines waiting for pickup.
func (s *KitchenService) ReadyForTable(tableID string) []dispatch.ReadyOrder {
	return s.deps.Bus.Board().OrdersReadyForTable(tableID)
}
