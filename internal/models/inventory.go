package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// RecipeEntry says how much of an ingredient one unit of a product uses.
type RecipeEntry struct {
	ProductID       string
	IngredientID    string
	QuantityPerUnit decimal.Decimal
}

// Ingredient is a stocked ingredient and its current level.
type Ingredient struct {
	ID   string
	Name string

	// Unit is the unit of measure (e.g., "g", "ml", "pcs").
	Unit string

	// Quantity never becomes negative.
	Quantity decimal.Decimal

	// MinThreshold is the level at or below which the ingredient is reported as low.
	MinThreshold decimal.Decimal
}

// StockTransactionKind classifies a stock movement.
type StockTransactionKind string

const (
	StockConsume StockTransactionKind = "CONSUME"
)

// StockTransaction is an audit record of one ingredient movement.
type StockTransaction struct {
	ID           string
	IngredientID string
	OrderID      string
	ProductID    string
	Kind         StockTransactionKind

	// Delta is negative for consumption.
	Delta decimal.Decimal

	// Balance is the ingredient quantity after the movement.
	Balance decimal.Decimal

	CreatedAt time.Time
}

// LowStockItem is one row of a low-stock report.
type LowStockItem struct {
	IngredientID string
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	MinThreshold decimal.Decimal

	// Deficit is MinThreshold - Quantity, zero when exactly at the threshold.
	Deficit decimal.Decimal
}
