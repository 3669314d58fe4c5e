// Package storage defines the persistence collaborators of the engine.
// The engine calls them after an in-memory change has been committed; it
// never depends on how they store data.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/models"
)

// OrderStore persists orders and their lines.
type OrderStore interface {
	// LoadOpenOrder returns the open order of a table, or nil if the table
	// has none.
	LoadOpenOrder(ctx context.Context, tableID string) (*models.Order, error)

	// GetOrder returns an order by ID, or an error wrapping
	// apperr.ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)

	// ListOpenOrders returns every order that is still open.
	ListOpenOrders(ctx context.Context) ([]models.Order, error)

	// PersistOrder upserts an order and all of its lines. A snapshot older
	// than the stored one (lower Seq) is ignored.
	PersistOrder(ctx context.Context, order models.Order) error

	// PersistLine upserts a single line of an already persisted order.
	PersistLine(ctx context.Context, line models.OrderLine) error
}

// Catalog is the product and recipe reference data.
type Catalog interface {
	// PriceOf returns the current unit price of a product.
	PriceOf(ctx context.Context, productID string) (decimal.Decimal, error)

	// RecipeOf returns the ingredients used by one unit of a product.
	RecipeOf(ctx context.Context, productID string) ([]models.RecipeEntry, error)

	SaveProduct(ctx context.Context, product models.Product) error
	SaveRecipe(ctx context.Context, productID string, entries []models.RecipeEntry) error
}

// StockJournal persists ingredient levels and the stock movements applied
// to them.
type StockJournal interface {
	ListIngredients(ctx context.Context) ([]models.Ingredient, error)
	SaveIngredient(ctx context.Context, ingredient models.Ingredient) error

	// RecordConsumption appends transactions and applies their deltas.
	// Recording a transaction that is already stored has no effect.
	RecordConsumption(ctx context.Context, txs []models.StockTransaction) error

	ListTransactions(ctx context.Context, orderID string) ([]models.StockTransaction, error)
}

// SplitStore persists split bills with their parts.
type SplitStore interface {
	SaveSplit(ctx context.Context, split models.SplitBill) error

	// GetSplit returns a split by ID, or an error wrapping
	// apperr.ErrSplitNotFound.
	GetSplit(ctx context.Context, splitID string) (*models.SplitBill, error)

	// ListOpenSplits returns the splits that are not fully paid.
	ListOpenSplits(ctx context.Context) ([]models.SplitBill, error)
}

// EventLog is an append-only audit trail of order events.
type EventLog interface {
	AppendEvent(ctx context.Context, ev models.Event) error

	// ListEvents returns the events of an order in sequence order.
	ListEvents(ctx context.Context, orderID string) ([]models.Event, error)
}

// Store bundles every collaborator into one backend.
// This allows swapping storage backends without changing the service layer.
type Store interface {
	OrderStore
	Catalog
	StockJournal
	SplitStore
	EventLog

	// Close releases any resources held by the store.
	Close() error
}
