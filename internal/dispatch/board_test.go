package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/mmynk/tableside/internal/models"
)

func statusEvent(orderID, tableID, lineID string, from, to models.LineStatus, at time.Time) models.Event {
	return models.Event{
		Kind:    models.EventLineStatusChanged,
		OrderID: orderID,
		TableID: tableID,
		LineID:  lineID,
		From:    from,
		To:      to,
		At:      at,
	}
}

func TestBoard_Lifecycle(t *testing.T) {
	bus := New()
	defer bus.Close(context.Background())
	board := bus.Board()
	now := time.Now()

	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "a"})
	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "b"})
	bus.Publish(statusEvent("o1", "T1", "a", models.LinePending, models.LineCooking, now))

	tickets := board.InKitchen()
	if len(tickets) != 1 {
		t.Fatalf("InKitchen() = %d tickets, want 1", len(tickets))
	}
	if len(tickets[0].Cooking) != 1 || tickets[0].Cooking[0] != "a" {
		t.Errorf("Cooking = %v, want [a]", tickets[0].Cooking)
	}
	if len(tickets[0].Pending) != 1 || tickets[0].Pending[0] != "b" {
		t.Errorf("Pending = %v, want [b]", tickets[0].Pending)
	}

	bus.Publish(statusEvent("o1", "T1", "a", models.LineCooking, models.LineReady, now))
	ready := board.OrdersReadyForTable("T1")
	if len(ready) != 1 || ready[0].OrderID != "o1" || len(ready[0].LineIDs) != 1 {
		t.Fatalf("OrdersReadyForTable = %+v, want o1 with line a", ready)
	}
	if lines := board.ReadyLines("o1"); len(lines) != 1 || lines[0] != "a" {
		t.Errorf("ReadyLines = %v, want [a]", lines)
	}
	if len(board.OrdersReadyForTable("T2")) != 0 {
		t.Error("expected nothing ready for T2")
	}

	bus.Publish(statusEvent("o1", "T1", "a", models.LineReady, models.LineServed, now))
	if len(board.OrdersReadyForTable("T1")) != 0 {
		t.Error("expected served line to leave the ready board")
	}

	bus.Publish(statusEvent("o1", "T1", "b", models.LinePending, models.LineCancelled, now))
	if len(board.InKitchen()) != 0 {
		t.Errorf("InKitchen() = %+v, want empty", board.InKitchen())
	}
}

func TestBoard_OrderClosedClearsEntries(t *testing.T) {
	bus := New()
	defer bus.Close(context.Background())
	board := bus.Board()
	now := time.Now()

	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "a"})
	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "b"})
	bus.Publish(statusEvent("o1", "T1", "a", models.LinePending, models.LineCooking, now))
	bus.Publish(statusEvent("o1", "T1", "a", models.LineCooking, models.LineReady, now))
	bus.Publish(models.Event{Kind: models.EventOrderCompleted, OrderID: "o1", TableID: "T1", Forced: true})

	if len(board.InKitchen()) != 0 {
		t.Error("expected completed order to leave the kitchen")
	}
	if len(board.OrdersReadyForTable("T1")) != 0 {
		t.Error("expected completed order to leave the ready board")
	}
}

func TestBoard_ReadyOrdersSortedByAge(t *testing.T) {
	board := NewBoard()
	base := time.Now()

	board.apply(statusEvent("late", "T1", "x", models.LineCooking, models.LineReady, base.Add(time.Minute)))
	board.apply(statusEvent("early", "T1", "y", models.LineCooking, models.LineReady, base))

	ready := board.OrdersReadyForTable("T1")
	if len(ready) != 2 || ready[0].OrderID != "early" || ready[1].OrderID != "late" {
		t.Errorf("OrdersReadyForTable = %+v, want early then late", ready)
	}
}

func TestBoard_Restore(t *testing.T) {
	board := NewBoard()
	early := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	late := early.Add(4 * time.Minute)

	board.Restore(models.Order{
		ID:      "o1",
		TableID: "T4",
		Status:  models.OrderOpen,
		Lines: []models.OrderLine{
			{ID: "a", Status: models.LinePending},
			{ID: "b", Status: models.LineCooking},
			{ID: "c", Status: models.LineReady, CompletedAt: late},
			{ID: "d", Status: models.LineReady, CompletedAt: early},
			{ID: "e", Status: models.LineServed},
			{ID: "f", Status: models.LineCancelled},
		},
	})
	board.Restore(models.Order{
		ID:      "o2",
		TableID: "T4",
		Status:  models.OrderCompleted,
		Lines:   []models.OrderLine{{ID: "x", Status: models.LineReady, CompletedAt: early}},
	})

	tickets := board.InKitchen()
	if len(tickets) != 1 || len(tickets[0].Pending) != 1 || len(tickets[0].Cooking) != 1 {
		t.Fatalf("InKitchen() = %+v, want o1 with one pending and one cooking line", tickets)
	}
	ready := board.OrdersReadyForTable("T4")
	if len(ready) != 1 || ready[0].OrderID != "o1" || len(ready[0].LineIDs) != 2 {
		t.Fatalf("OrdersReadyForTable = %+v, want o1 with lines c and d", ready)
	}
	if !ready[0].ReadySince.Equal(early) {
		t.Errorf("ReadySince = %s, want %s", ready[0].ReadySince, early)
	}

	// Restoring again replaces the entries instead of duplicating them.
	board.Restore(models.Order{
		ID:      "o1",
		TableID: "T4",
		Status:  models.OrderOpen,
		Lines:   []models.OrderLine{{ID: "c", Status: models.LineReady, CompletedAt: late}},
	})
	if len(board.InKitchen()) != 0 {
		t.Errorf("InKitchen() = %+v, want empty", board.InKitchen())
	}
	if lines := board.ReadyLines("o1"); len(lines) != 1 || lines[0] != "c" {
		t.Errorf("ReadyLines = %v, want [c]", lines)
	}
}
