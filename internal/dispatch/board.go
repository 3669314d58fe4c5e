package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/mmynk/tableside/internal/models"
)

// KitchenTicket is an order with lines still waiting on or being cooked by the kitchen.
type KitchenTicket struct {
	OrderID string
	TableID string
	Pending []string
	Cooking []string
}

// ReadyOrder is an order with lines waiting for pickup.
type ReadyOrder struct {
	OrderID    string
	TableID    string
	LineIDs    []string
	ReadySince time.Time
}

type ticket struct {
	tableID string
	lines   map[string]models.LineStatus
	order   []string
}

// Board is the bus's transient view of what is in the kitchen and what is
// ready for pickup. It is updated as events are published and keeps no history.
type Board struct {
	mu        sync.RWMutex
	inKitchen map[string]*ticket
	// ready is keyed by table, then order, so a table query only walks that table's entries.
	ready      map[string]map[string]*ReadyOrder
	readyTable map[string]string
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{
		inKitchen:  make(map[string]*ticket),
		ready:      make(map[string]map[string]*ReadyOrder),
		readyTable: make(map[string]string),
	}
}

func (b *Board) apply(ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case models.EventLineAdded:
		b.setKitchenLine(ev, models.LinePending)
	case models.EventLineStatusChanged:
		switch ev.To {
		case models.LineCooking:
			b.setKitchenLine(ev, models.LineCooking)
		case models.LineCancelled:
			b.removeKitchenLine(ev.OrderID, ev.LineID)
		case models.LineReady:
			b.removeKitchenLine(ev.OrderID, ev.LineID)
			b.addReadyLine(ev)
		case models.LineServed:
			b.removeReadyLine(ev.OrderID, ev.LineID)
		}
	case models.EventOrderCompleted, models.EventOrderCancelled:
		delete(b.inKitchen, ev.OrderID)
		b.removeReadyOrder(ev.OrderID)
	}
}

func (b *Board) setKitchenLine(ev models.Event, status models.LineStatus) {
	t, ok := b.inKitchen[ev.OrderID]
	if !ok {
		t = &ticket{tableID: ev.TableID, lines: make(map[string]models.LineStatus)}
		b.inKitchen[ev.OrderID] = t
	}
	if _, seen := t.lines[ev.LineID]; !seen {
		t.order = append(t.order, ev.LineID)
	}
	t.lines[ev.LineID] = status
}

func (b *Board) removeKitchenLine(orderID, lineID string) {
	t, ok := b.inKitchen[orderID]
	if !ok {
		return
	}
	delete(t.lines, lineID)
	t.order = removeID(t.order, lineID)
	if len(t.lines) == 0 {
		delete(b.inKitchen, orderID)
	}
}

func (b *Board) addReadyLine(ev models.Event) {
	orders, ok := b.ready[ev.TableID]
	if !ok {
		orders = make(map[string]*ReadyOrder)
		b.ready[ev.TableID] = orders
	}
	ro, ok := orders[ev.OrderID]
	if !ok {
		ro = &ReadyOrder{OrderID: ev.OrderID, TableID: ev.TableID, ReadySince: ev.At}
		orders[ev.OrderID] = ro
		b.readyTable[ev.OrderID] = ev.TableID
	}
	ro.LineIDs = append(ro.LineIDs, ev.LineID)
}

func (b *Board) removeReadyLine(orderID, lineID string) {
	tableID, ok := b.readyTable[orderID]
	if !ok {
		return
	}
	ro := b.ready[tableID][orderID]
	ro.LineIDs = removeID(ro.LineIDs, lineID)
	if len(ro.LineIDs) == 0 {
		b.removeReadyOrder(orderID)
	}
}

func (b *Board) removeReadyOrder(orderID string) {
	tableID, ok := b.readyTable[orderID]
	if !ok {
		return
	}
	delete(b.readyTable, orderID)
	delete(b.ready[tableID], orderID)
	if len(b.ready[tableID]) == 0 {
		delete(b.ready, tableID)
	}
}

// Restore seeds the board with an order loaded from storage, as if its
// events had just been published. Orders that are no longer open are ignored.
func (b *Board) Restore(o models.Order) {
	if o.Status != models.OrderOpen {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.inKitchen, o.ID)
	b.removeReadyOrder(o.ID)
	for _, l := range o.Lines {
		ev := models.Event{OrderID: o.ID, TableID: o.TableID, LineID: l.ID, At: l.CompletedAt}
		switch l.Status {
		case models.LinePending, models.LineCooking:
			b.setKitchenLine(ev, l.Status)
		case models.LineReady:
			b.addReadyLine(ev)
			if ro := b.ready[o.TableID][o.ID]; l.CompletedAt.Before(ro.ReadySince) {
				ro.ReadySince = l.CompletedAt
			}
		}
	}
}

// OrdersReadyForTable returns the orders of a table that have lines ready for
// pickup, oldest first. It only looks at that table's ready entries.
func (b *Board) OrdersReadyForTable(tableID string) []ReadyOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	orders := make([]ReadyOrder, 0, len(b.ready[tableID]))
	for _, ro := range b.ready[tableID] {
		c := *ro
		c.LineIDs = append([]string(nil), ro.LineIDs...)
		orders = append(orders, c)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ReadySince.Before(orders[j].ReadySince)
	})
	return orders
}

// ReadyLines returns the lines of an order that are ready for pickup.
func (b *Board) ReadyLines(orderID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tableID, ok := b.readyTable[orderID]
	if !ok {
		return nil
	}
	return append([]string(nil), b.ready[tableID][orderID].LineIDs...)
}

// InKitchen returns every order with PENDING or COOKING lines.
func (b *Board) InKitchen() []KitchenTicket {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tickets := make([]KitchenTicket, 0, len(b.inKitchen))
	for orderID, t := range b.inKitchen {
		kt := KitchenTicket{OrderID: orderID, TableID: t.tableID}
		for _, lineID := range t.order {
			switch t.lines[lineID] {
			case models.LinePending:
				kt.Pending = append(kt.Pending, lineID)
			case models.LineCooking:
				kt.Cooking = append(kt.Cooking, lineID)
			}
		}
		tickets = append(tickets, kt)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].OrderID < tickets[j].OrderID })
	return tickets
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
