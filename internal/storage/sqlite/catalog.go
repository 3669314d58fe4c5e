package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
)

// SaveProduct inserts or updates a product.
func (s *SQLiteStore) SaveProduct(ctx context.Context, product models.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price`,
		product.ID, product.Name, product.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// PriceOf returns the catalog price of a product.
func (s *SQLiteStore) PriceOf(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.QueryRowContext(ctx, "SELECT price FROM products WHERE id = ?", productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", apperr.ErrProductNotFound, productID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price: %w", err)
	}
	return price, nil
}

// SaveRecipe replaces the recipe of a product.
func (s *SQLiteStore) SaveRecipe(ctx context.Context, productID string, entries []models.RecipeEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM recipes WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("failed to clear recipe: %w", err)
	}

	// Repeated ingredients are merged into one row.
	merged := make(map[string]decimal.Decimal, len(entries))
	var order []string
	for _, e := range entries {
		if _, ok := merged[e.IngredientID]; !ok {
			order = append(order, e.IngredientID)
		}
		merged[e.IngredientID] = merged[e.IngredientID].Add(e.QuantityPerUnit)
	}

	for _, ingredientID := range order {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO recipes (product_id, ingredient_id, quantity_per_unit) VALUES (?, ?, ?)",
			productID, ingredientID, merged[ingredientID],
		)
		if err != nil {
			return fmt.Errorf("failed to insert recipe entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecipeOf returns the recipe of a product. A product without a recipe
// returns an empty slice; an unknown product is an error.
func (s *SQLiteStore) RecipeOf(ctx context.Context, productID string) ([]models.RecipeEntry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM products WHERE id = ?", productID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check product existence: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ingredient_id, quantity_per_unit FROM recipes
		 WHERE product_id = ? ORDER BY ingredient_id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	defer rows.Close()

	entries := []models.RecipeEntry{}
	for rows.Next() {
		e := models.RecipeEntry{ProductID: productID}
		if err := rows.Scan(&e.IngredientID, &e.QuantityPerUnit); err != nil {
			return nil, fmt.Errorf("failed to scan recipe entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipe: %w", err)
	}
	return entries, nil
}
