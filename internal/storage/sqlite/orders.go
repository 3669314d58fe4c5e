package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
)

const orderColumns = `id, table_id, staff_id, guests, subtotal, discount, tax, service_charge, total,
	status, opened_at, closed_at, cancel_reason, forced_by, force_reason, unserved_line_ids, seq`

const lineColumns = `id, order_id, product_id, quantity, unit_price, subtotal, notes, status,
	sent_to_kitchen_at, completed_at`

// PersistOrder upserts an order and its lines in one transaction.
func (s *SQLiteStore) PersistOrder(ctx context.Context, order models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     staff_id = excluded.staff_id,
		     guests = excluded.guests,
		     subtotal = excluded.subtotal,
		     discount = excluded.discount,
		     tax = excluded.tax,
		     service_charge = excluded.service_charge,
		     total = excluded.total,
		     status = excluded.status,
		     closed_at = excluded.closed_at,
		     cancel_reason = excluded.cancel_reason,
		     forced_by = excluded.forced_by,
		     force_reason = excluded.force_reason,
		     unserved_line_ids = excluded.unserved_line_ids,
		     seq = excluded.seq
		 WHERE excluded.seq >= orders.seq`,
		order.ID, order.TableID, order.StaffID, order.Guests,
		order.Subtotal, order.Discount, order.Tax, order.ServiceCharge, order.Total,
		string(order.Status), toMillis(order.OpenedAt), toMillis(order.ClosedAt),
		order.CancelReason, order.ForcedBy, order.ForceReason,
		strings.Join(order.UnservedLineIDs, ","), order.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	// A newer snapshot is already stored.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for _, line := range order.Lines {
		if err := upsertLine(ctx, tx, line); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PersistLine upserts a single line.
func (s *SQLiteStore) PersistLine(ctx context.Context, line models.OrderLine) error {
	return upsertLine(ctx, s.db, line)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertLine(ctx context.Context, db execer, line models.OrderLine) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO order_lines (`+lineColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     quantity = excluded.quantity,
		     subtotal = excluded.subtotal,
		     notes = excluded.notes,
		     status = excluded.status,
		     completed_at = excluded.completed_at`,
		line.ID, line.OrderID, line.ProductID, line.Quantity,
		line.UnitPrice, line.Subtotal, line.Notes, string(line.Status),
		toMillis(line.SentToKitchenAt), toMillis(line.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert line %s: %w", line.ID, err)
	}
	return nil
}

// LoadOpenOrder returns the most recently opened open order of a table.
func (s *SQLiteStore) LoadOpenOrder(ctx context.Context, tableID string) (*models.Order, error) {
	orders, err := s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE table_id = ? AND status = ? ORDER BY opened_at DESC LIMIT 1`,
		tableID, string(models.OrderOpen),
	)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

// GetOrder retrieves an order by ID, including all lines.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	orders, err := s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrOrderNotFound, orderID)
	}
	return &orders[0], nil
}

// ListOpenOrders returns every open order, oldest first.
func (s *SQLiteStore) ListOpenOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY opened_at`,
		string(models.OrderOpen),
	)
}

// queryOrders runs an order query and attaches the lines of every result.
func (s *SQLiteStore) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	orders, err := s.scanOrders(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Lines are loaded after the order rows are closed; the store holds a
	// single connection.
	for i := range orders {
		lines, err := s.listLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (s *SQLiteStore) scanOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			o                  models.Order
			status, unserved   string
			openedAt, closedAt int64
		)
		if err := rows.Scan(&o.ID, &o.TableID, &o.StaffID, &o.Guests,
			&o.Subtotal, &o.Discount, &o.Tax, &o.ServiceCharge, &o.Total,
			&status, &openedAt, &closedAt, &o.CancelReason, &o.ForcedBy, &o.ForceReason,
			&unserved, &o.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = models.OrderStatus(status)
		o.OpenedAt = fromMillis(openedAt)
		o.ClosedAt = fromMillis(closedAt)
		if unserved != "" {
			o.UnservedLineIDs = strings.Split(unserved, ",")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (s *SQLiteStore) listLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines
		 WHERE order_id = ? ORDER BY sent_to_kitchen_at, rowid`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var (
			l                   models.OrderLine
			status              string
			sentAt, completedAt int64
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity,
			&l.UnitPrice, &l.Subtotal, &l.Notes, &status, &sentAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		l.Status = models.LineStatus(status)
		l.SentToKitchenAt = fromMillis(sentAt)
		l.CompletedAt = fromMillis(completedAt)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lines: %w", err)
	}
	return lines, nil
}
