// Package service wires the order aggregate, dispatch bus, inventory ledger
// and settlement engine into the flows used by the floor, the kitchen and
// the cashier.
//
// Every flow mutates the in-memory model first and persists afterwards. A
// failed write is logged and handed to the Reconciler, which retries it
// later; the in-memory state is never rolled back because of storage.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/inventory"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/order"
	"github.com/mmynk/tableside/internal/settlement"
	"github.com/mmynk/tableside/internal/storage"
)

// Observer is notified of order closures and persistence failures.
type Observer interface {
	OrderClosed(status models.OrderStatus, forced bool)
	PersistFailed(entity string)
}

type nopObserver struct{}

func (nopObserver) OrderClosed(models.OrderStatus, bool) {}
func (nopObserver) PersistFailed(string)                 {}

// Deps are the collaborators shared by all services.
type Deps struct {
	Store    storage.Store
	Bus      *dispatch.Bus
	Ledger   *inventory.Ledger
	Engine   *settlement.Engine
	Pricing  order.Pricing
	Orders   *Orders
	Pending  *Reconciler
	Observer Observer
}

func (d *Deps) observer() Observer {
	if d.Observer == nil {
		return nopObserver{}
	}
	return d.Observer
}

// Orders indexes the live order aggregates by order and by table.
// Closed orders stay reachable by ID until they are forgotten.
type Orders struct {
	mu      sync.RWMutex
	byID    map[string]*order.Aggregate
	byTable map[string]*order.Aggregate
}

// NewOrders creates an empty registry.
func NewOrders() *Orders {
	return &Orders{
		byID:    make(map[string]*order.Aggregate),
		byTable: make(map[string]*order.Aggregate),
	}
}

// Get returns the aggregate of an order.
func (r *Orders) Get(orderID string) (*order.Aggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrOrderNotFound, orderID)
	}
	return a, nil
}

// ForTable returns the open order of a table.
func (r *Orders) ForTable(tableID string) (*order.Aggregate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byTable[tableID]
	return a, ok
}

// Len returns the number of orders held.
func (r *Orders) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// add registers a, unless the table already has an open order, which is
// returned instead.
func (r *Orders) add(a *order.Aggregate) *order.Aggregate {
	snap := a.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byTable[snap.TableID]; ok {
		return cur
	}
	r.byID[snap.ID] = a
	if snap.Status == models.OrderOpen {
		r.byTable[snap.TableID] = a
	}
	return a
}

// closed frees the order's table.
func (r *Orders) closed(a *order.Aggregate) {
	snap := a.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byTable[snap.TableID] == a {
		delete(r.byTable, snap.TableID)
	}
}

// Forget drops an order from the registry.
func (r *Orders) Forget(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[orderID]
	if !ok {
		return
	}
	delete(r.byID, orderID)
	for table, cur := range r.byTable {
		if cur == a {
			delete(r.byTable, table)
		}
	}
}

// persistOrder writes the order's current snapshot, flagging it for
// reconciliation on failure.
func persistOrder(ctx context.Context, d *Deps, a *order.Aggregate) {
	snap := a.Snapshot()
	if err := d.Store.PersistOrder(ctx, snap); err != nil {
		slog.Error("Failed to persist order, flagged for reconciliation",
			"order_id", snap.ID, "seq", snap.Seq, "error", err)
		d.observer().PersistFailed("order")
		d.Pending.FlagOrder(snap)
	}
}

// persistLine writes a single line. On failure the whole order snapshot is
// flagged, since it contains the line.
func persistLine(ctx context.Context, d *Deps, a *order.Aggregate, line models.OrderLine) {
	if err := d.Store.PersistLine(ctx, line); err != nil {
		slog.Error("Failed to persist line, flagged for reconciliation",
			"order_id", line.OrderID, "line_id", line.ID, "error", err)
		d.observer().PersistFailed("line")
		d.Pending.FlagOrder(a.Snapshot())
	}
}

func persistSplit(ctx context.Context, d *Deps, split models.SplitBill) {
	if err := d.Store.SaveSplit(ctx, split); err != nil {
		slog.Error("Failed to persist split, flagged for reconciliation",
			"split_id", split.ID, "order_id", split.OrderID, "error", err)
		d.observer().PersistFailed("split")
		d.Pending.FlagSplit(split)
	}
}

func persistStock(ctx context.Context, d *Deps, txs []models.StockTransaction) {
	if len(txs) == 0 {
		return
	}
	if err := d.Store.RecordConsumption(ctx, txs); err != nil {
		slog.Error("Failed to journal stock consumption, flagged for reconciliation",
			"order_id", txs[0].OrderID, "transactions", len(txs), "error", err)
		d.observer().PersistFailed("stock")
		d.Pending.FlagStock(txs)
	}
}
