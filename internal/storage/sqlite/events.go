package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/tableside/internal/models"
)

// AppendEvent writes an event to the audit log.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev models.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events
		     (order_id, table_id, seq, kind, line_id, product_id, quantity,
		      from_status, to_status, total, forced, reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.OrderID, ev.TableID, ev.Seq, string(ev.Kind), ev.LineID, ev.ProductID, ev.Quantity,
		string(ev.From), string(ev.To), ev.Total, boolToInt(ev.Forced), ev.Reason, toMillis(ev.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns the logged events of an order in sequence order.
func (s *SQLiteStore) ListEvents(ctx context.Context, orderID string) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, table_id, seq, kind, line_id, product_id, quantity,
		        from_status, to_status, total, forced, reason, at
		 FROM events WHERE order_id = ? ORDER BY seq, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev             models.Event
			kind, from, to string
			forced         int
			at             int64
		)
		if err := rows.Scan(&ev.OrderID, &ev.TableID, &ev.Seq, &kind, &ev.LineID, &ev.ProductID,
			&ev.Quantity, &from, &to, &ev.Total, &forced, &ev.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = models.EventKind(kind)
		ev.From = models.LineStatus(from)
		ev.To = models.LineStatus(to)
		ev.Forced = forced != 0
		ev.At = fromMillis(at)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
