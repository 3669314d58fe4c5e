package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
)

// SaveSplit upserts a split with all of its parts and part items.
func (s *SQLiteStore) SaveSplit(ctx context.Context, split models.SplitBill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO split_bills (id, order_id, mode, total, status, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET total = excluded.total, status = excluded.status`,
		split.ID, split.OrderID, string(split.Mode), split.Total, string(split.Status), toMillis(split.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert split: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM part_items WHERE split_id = ?", split.ID); err != nil {
		return fmt.Errorf("failed to clear part items: %w", err)
	}

	for _, p := range split.Parts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO split_bill_parts (split_id, number, payer_name, amount, paid, method, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(split_id, number) DO UPDATE SET
			     payer_name = excluded.payer_name,
			     amount = excluded.amount,
			     paid = excluded.paid,
			     method = excluded.method,
			     paid_at = excluded.paid_at`,
			split.ID, p.Number, p.PayerName, p.Amount, boolToInt(p.Paid), string(p.Method), toMillis(p.PaidAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert part %d: %w", p.Number, err)
		}

		for i, item := range p.Items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO part_items (split_id, part_number, position, line_id, amount) VALUES (?, ?, ?, ?, ?)`,
				split.ID, p.Number, i, item.LineID, item.Amount,
			)
			if err != nil {
				return fmt.Errorf("failed to insert part item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSplit retrieves a split by ID, including parts and part items.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.SplitBill, error) {
	splits, err := s.querySplits(ctx,
		"SELECT id, order_id, mode, total, status, created_at FROM split_bills WHERE id = ?",
		splitID,
	)
	if err != nil {
		return nil, err
	}
	if len(splits) == 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrSplitNotFound, splitID)
	}
	return &splits[0], nil
}

// ListOpenSplits returns the splits that are not completed, oldest first.
func (s *SQLiteStore) ListOpenSplits(ctx context.Context) ([]models.SplitBill, error) {
	return s.querySplits(ctx,
		`SELECT id, order_id, mode, total, status, created_at FROM split_bills
		 WHERE status != ? ORDER BY created_at`,
		string(models.SplitCompleted),
	)
}

func (s *SQLiteStore) querySplits(ctx context.Context, query string, args ...any) ([]models.SplitBill, error) {
	splits, err := s.scanSplits(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range splits {
		if splits[i].Parts, err = s.listParts(ctx, splits[i].ID); err != nil {
			return nil, err
		}
	}
	return splits, nil
}

func (s *SQLiteStore) scanSplits(ctx context.Context, query string, args ...any) ([]models.SplitBill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer rows.Close()

	var splits []models.SplitBill
	for rows.Next() {
		var (
			split        models.SplitBill
			mode, status string
			createdAt    int64
		)
		if err := rows.Scan(&split.ID, &split.OrderID, &mode, &split.Total, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Mode = models.SplitMode(mode)
		split.Status = models.SplitStatus(status)
		split.CreatedAt = fromMillis(createdAt)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

func (s *SQLiteStore) listParts(ctx context.Context, splitID string) ([]models.SplitBillPart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, payer_name, amount, paid, method, paid_at
		 FROM split_bill_parts WHERE split_id = ? ORDER BY number`,
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get parts: %w", err)
	}

	var parts []models.SplitBillPart
	for rows.Next() {
		var (
			p      models.SplitBillPart
			paid   int
			method string
			paidAt int64
		)
		if err := rows.Scan(&p.Number, &p.PayerName, &p.Amount, &paid, &method, &paidAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		p.Paid = paid != 0
		p.Method = models.PaymentMethod(method)
		p.PaidAt = fromMillis(paidAt)
		parts = append(parts, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate parts: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT part_number, line_id, amount FROM part_items
		 WHERE split_id = ? ORDER BY part_number, position`,
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get part items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			number int
			item   models.PartItem
		)
		if err := itemRows.Scan(&number, &item.LineID, &item.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan part item: %w", err)
		}
		if number >= 1 && number <= len(parts) {
			parts[number-1].Items = append(parts[number-1].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate part items: %w", err)
	}
	return parts, nil
}
