// Package inventory implements the ingredient stock ledger.
//
// Consumption is all-or-nothing across the ingredients of a recipe. Each
// ingredient has its own lock; a consumption locks every ingredient it
// touches in ID order, checks all of them, and only then deducts.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
)

// RecipeSource resolves the recipe of a product.
type RecipeSource interface {
	RecipeOf(ctx context.Context, productID string) ([]models.RecipeEntry, error)
}

// Observer is notified of consumptions and shortfalls.
type Observer interface {
	Consumed(productID string, training bool)
	Shortfall(ingredientID string)
}

type nopObserver struct{}

func (nopObserver) Consumed(string, bool) {}
func (nopObserver) Shortfall(string)      {}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithObserver sets the observer notified of consumptions.
func WithObserver(obs Observer) Option {
	return func(l *Ledger) { l.obs = obs }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithTrainingMode starts the ledger in training mode.
func WithTrainingMode(on bool) Option {
	return func(l *Ledger) { l.training.Store(on) }
}

type stock struct {
	mu  sync.Mutex
	ing models.Ingredient
}

// Ledger holds the current stock of every registered ingredient.
type Ledger struct {
	recipes RecipeSource
	logger  *slog.Logger
	obs     Observer
	now     func() time.Time

	training atomic.Bool

	mu     sync.RWMutex
	stocks map[string]*stock

	txMu sync.Mutex
	txs  map[string][]models.StockTransaction
}

// New creates an empty ledger reading recipes from recipes.
func New(recipes RecipeSource, opts ...Option) *Ledger {
	l := &Ledger{
		recipes: recipes,
		logger:  slog.Default(),
		obs:     nopObserver{},
		now:     time.Now,
		stocks:  make(map[string]*stock),
		txs:     make(map[string][]models.StockTransaction),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load registers every ingredient, replacing known ones.
func (l *Ledger) Load(ingredients []models.Ingredient) error {
	for _, ing := range ingredients {
		if err := l.Register(ing); err != nil {
			return err
		}
	}
	return nil
}

// Register adds an ingredient or replaces the stock level of a known one.
func (l *Ledger) Register(ing models.Ingredient) error {
	if ing.ID == "" {
		return fmt.Errorf("%w: ingredient id is empty", apperr.ErrIngredientNotFound)
	}
	if ing.Quantity.Sign() < 0 {
		return fmt.Errorf("%w: ingredient %s has quantity %s", apperr.ErrInvalidQuantity, ing.ID, ing.Quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stocks[ing.ID]; ok {
		s.mu.Lock()
		s.ing = ing
		s.mu.Unlock()
		return nil
	}
	l.stocks[ing.ID] = &stock{ing: ing}
	return nil
}

// SetTrainingMode turns deduction off (true) or back on (false).
func (l *Ledger) SetTrainingMode(on bool) {
	if l.training.Swap(on) != on {
		l.logger.Info("Training mode changed", "enabled", on)
	}
}

// TrainingMode reports whether deduction is bypassed.
func (l *Ledger) TrainingMode() bool {
	return l.training.Load()
}

// Stock returns the current state of an ingredient.
func (l *Ledger) Stock(ingredientID string) (models.Ingredient, error) {
	l.mu.RLock()
	s, ok := l.stocks[ingredientID]
	l.mu.RUnlock()
	if !ok {
		return models.Ingredient{}, fmt.Errorf("%w: %s", apperr.ErrIngredientNotFound, ingredientID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ing, nil
}

// Transactions returns the stock movements recorded against an order.
func (l *Ledger) Transactions(orderID string) []models.StockTransaction {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return append([]models.StockTransaction(nil), l.txs[orderID]...)
}

// ConsumeForCompletion deducts the ingredients needed for quantity units of
// a product. Either every ingredient is deducted or none is; a shortfall
// returns an *apperr.InsufficientStockError naming the first short
// ingredient. In training mode nothing is deducted and no transactions are
// returned.
func (l *Ledger) ConsumeForCompletion(ctx context.Context, productID string, quantity int, orderID string) ([]models.StockTransaction, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: got %d", apperr.ErrInvalidQuantity, quantity)
	}
	if l.training.Load() {
		l.logger.Debug("Training mode, skipping stock deduction", "product_id", productID, "order_id", orderID)
		l.obs.Consumed(productID, true)
		return nil, nil
	}

	recipe, err := l.recipes.RecipeOf(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe for product %s: %w", productID, err)
	}
	needs := requirements(recipe, quantity)
	if len(needs) == 0 {
		return nil, nil
	}

	locked, err := l.lockAll(needs)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, s := range locked {
			s.mu.Unlock()
		}
	}()

	for i, need := range needs {
		available := locked[i].ing.Quantity
		if available.LessThan(need.qty) {
			l.obs.Shortfall(need.ingredientID)
			return nil, &apperr.InsufficientStockError{
				IngredientID: need.ingredientID,
				Needed:       need.qty,
				Available:    available,
			}
		}
	}

	now := l.now()
	txs := make([]models.StockTransaction, 0, len(needs))
	for i, need := range needs {
		s := locked[i]
		s.ing.Quantity = s.ing.Quantity.Sub(need.qty)
		txs = append(txs, models.StockTransaction{
			ID:           uuid.New().String(),
			IngredientID: need.ingredientID,
			OrderID:      orderID,
			ProductID:    productID,
			Kind:         models.StockConsume,
			Delta:        need.qty.Neg(),
			Balance:      s.ing.Quantity,
			CreatedAt:    now,
		})
	}

	l.txMu.Lock()
	l.txs[orderID] = append(l.txs[orderID], txs...)
	l.txMu.Unlock()

	l.obs.Consumed(productID, false)
	l.logger.Debug("Stock consumed",
		"product_id", productID,
		"order_id", orderID,
		"quantity", quantity,
		"ingredients", len(txs),
	)
	return txs, nil
}

type requirement struct {
	ingredientID string
	qty          decimal.Decimal
}

// requirements merges the recipe into one requirement per ingredient,
// sorted by ingredient ID.
func requirements(recipe []models.RecipeEntry, quantity int) []requirement {
	units := decimal.NewFromInt(int64(quantity))
	merged := make(map[string]decimal.Decimal, len(recipe))
	for _, e := range recipe {
		merged[e.IngredientID] = merged[e.IngredientID].Add(e.QuantityPerUnit.Mul(units))
	}

	needs := make([]requirement, 0, len(merged))
	for id, qty := range merged {
		if qty.Sign() <= 0 {
			continue
		}
		needs = append(needs, requirement{ingredientID: id, qty: qty})
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].ingredientID < needs[j].ingredientID })
	return needs
}

// lockAll locks the stock of every requirement in order. On error nothing
// is left locked.
func (l *Ledger) lockAll(needs []requirement) ([]*stock, error) {
	stocks := make([]*stock, len(needs))
	l.mu.RLock()
	for i, need := range needs {
		s, ok := l.stocks[need.ingredientID]
		if !ok {
			l.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", apperr.ErrIngredientNotFound, need.ingredientID)
		}
		stocks[i] = s
	}
	l.mu.RUnlock()

	for _, s := range stocks {
		s.mu.Lock()
	}
	return stocks, nil
}
