package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/storage"
)

// Reconciler remembers writes that failed and retries them.
// Only the newest snapshot of an order or split is kept.
type Reconciler struct {
	store storage.Store

	mu     sync.Mutex
	orders map[string]models.Order
	splits map[string]models.SplitBill
	stock  map[string]models.StockTransaction
}

// NewReconciler creates a Reconciler writing to store.
func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{
		store:  store,
		orders: make(map[string]models.Order),
		splits: make(map[string]models.SplitBill),
		stock:  make(map[string]models.StockTransaction),
	}
}

// FlagOrder queues an order snapshot for persistence.
func (r *Reconciler) FlagOrder(o models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.orders[o.ID]; ok && cur.Seq > o.Seq {
		return
	}
	r.orders[o.ID] = o.Clone()
}

// FlagSplit queues a split snapshot for persistence.
func (r *Reconciler) FlagSplit(split models.SplitBill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.splits[split.ID] = split.Clone()
}

// FlagStock queues stock transactions for journaling.
func (r *Reconciler) FlagStock(txs []models.StockTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range txs {
		r.stock[tx.ID] = tx
	}
}

// Pending returns the number of queued writes.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders) + len(r.splits) + len(r.stock)
}

// RetryPending writes everything queued. Writes that fail again stay
// queued; the joined errors are returned.
func (r *Reconciler) RetryPending(ctx context.Context) error {
	r.mu.Lock()
	orders := r.orders
	splits := r.splits
	stock := r.stock
	r.orders = make(map[string]models.Order)
	r.splits = make(map[string]models.SplitBill)
	r.stock = make(map[string]models.StockTransaction)
	r.mu.Unlock()

	if len(orders)+len(splits)+len(stock) == 0 {
		return nil
	}

	var errs []error
	for _, o := range orders {
		if err := r.store.PersistOrder(ctx, o); err != nil {
			errs = append(errs, err)
			r.FlagOrder(o)
		}
	}
	for _, split := range splits {
		if err := r.store.SaveSplit(ctx, split); err != nil {
			errs = append(errs, err)
			r.requeueSplit(split)
		}
	}
	if len(stock) > 0 {
		txs := make([]models.StockTransaction, 0, len(stock))
		for _, tx := range stock {
			txs = append(txs, tx)
		}
		if err := r.store.RecordConsumption(ctx, txs); err != nil {
			errs = append(errs, err)
			r.FlagStock(txs)
		}
	}

	slog.Info("Reconciliation finished",
		"orders", len(orders),
		"splits", len(splits),
		"stock_transactions", len(stock),
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

// requeueSplit puts back a split unless a newer one was flagged meanwhile.
func (r *Reconciler) requeueSplit(split models.SplitBill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.splits[split.ID]; !ok {
		r.splits[split.ID] = split
	}
}
