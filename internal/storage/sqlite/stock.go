package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/models"
)

// SaveIngredient inserts or updates an ingredient, including its level.
func (s *SQLiteStore) SaveIngredient(ctx context.Context, ing models.Ingredient) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingredients (id, name, unit, quantity, min_threshold) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     unit = excluded.unit,
		     quantity = excluded.quantity,
		     min_threshold = excluded.min_threshold`,
		ing.ID, ing.Name, ing.Unit, ing.Quantity, ing.MinThreshold,
	)
	if err != nil {
		return fmt.Errorf("failed to save ingredient: %w", err)
	}
	return nil
}

// ListIngredients returns every ingredient ordered by ID.
func (s *SQLiteStore) ListIngredients(ctx context.Context) ([]models.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, unit, quantity, min_threshold FROM ingredients ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []models.Ingredient
	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.Quantity, &ing.MinThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingredients: %w", err)
	}
	return ingredients, nil
}

// RecordConsumption stores transactions and applies their deltas to the
// ingredient levels in one transaction. Transactions already stored are
// skipped, so a retried batch is applied once.
func (s *SQLiteStore) RecordConsumption(ctx context.Context, txs []models.StockTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, st := range txs {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO stock_transactions
			     (id, ingredient_id, order_id, product_id, kind, delta, balance, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.IngredientID, st.OrderID, st.ProductID, string(st.Kind),
			st.Delta, st.Balance, toMillis(st.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert stock transaction: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			continue
		}

		// Quantities are decimal TEXT, so the new level is computed here
		// rather than with SQL arithmetic.
		var current decimal.Decimal
		if err := tx.QueryRowContext(ctx,
			"SELECT quantity FROM ingredients WHERE id = ?", st.IngredientID,
		).Scan(&current); err != nil {
			return fmt.Errorf("failed to read ingredient %s: %w", st.IngredientID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE ingredients SET quantity = ? WHERE id = ?",
			current.Add(st.Delta), st.IngredientID,
		); err != nil {
			return fmt.Errorf("failed to update ingredient %s: %w", st.IngredientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the stock movements of an order, oldest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, orderID string) ([]models.StockTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ingredient_id, order_id, product_id, kind, delta, balance, created_at
		 FROM stock_transactions WHERE order_id = ? ORDER BY created_at, rowid`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.StockTransaction
	for rows.Next() {
		var (
			st        models.StockTransaction
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&st.ID, &st.IngredientID, &st.OrderID, &st.ProductID, &kind,
			&st.Delta, &st.Balance, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock transaction: %w", err)
		}
		st.Kind = models.StockTransactionKind(kind)
		st.CreatedAt = fromMillis(createdAt)
		txs = append(txs, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock transactions: %w", err)
	}
	return txs, nil
}
