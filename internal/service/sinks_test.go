package service

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/models"
)

func TestKitchenDisplaySink(t *testing.T) {
	var buf bytes.Buffer
	sink := KitchenDisplaySink(slog.New(slog.NewTextHandler(&buf, nil)))

	events := []models.Event{
		{Kind: models.EventLineAdded, TableID: "T1", LineID: "l1", ProductID: "pho", Quantity: 2},
		{Kind: models.EventLineStatusChanged, TableID: "T1", LineID: "l1", From: models.LinePending, To: models.LineCooking},
		{Kind: models.EventLineStatusChanged, TableID: "T1", LineID: "l1", From: models.LineCooking, To: models.LineCancelled},
	}
	for _, ev := range events {
		if err := sink(ev.Kind, ev); err != nil {
			t.Fatalf("sink returned %v", err)
		}
	}

	out := buf.String()
	if !strings.Contains(out, "New ticket line") || !strings.Contains(out, "Ticket line cancelled") {
		t.Errorf("Unexpected display output:\n%s", out)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Errorf("Expected 2 display lines, got %d", got)
	}
}

func TestPagerSink(t *testing.T) {
	bus := dispatch.New()
	var buf bytes.Buffer
	sink := PagerSink(slog.New(slog.NewTextHandler(&buf, nil)), bus.Board())

	for _, id := range []string{"l1", "l2"} {
		bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: id, Seq: 1})
		bus.Publish(models.Event{Kind: models.EventLineStatusChanged, OrderID: "o1", TableID: "T1", LineID: id, From: models.LinePending, To: models.LineCooking})
		bus.Publish(models.Event{Kind: models.EventLineStatusChanged, OrderID: "o1", TableID: "T1", LineID: id, From: models.LineCooking, To: models.LineReady})
	}

	ev := models.Event{Kind: models.EventLineStatusChanged, OrderID: "o1", TableID: "T1", LineID: "l2", To: models.LineReady}
	if err := sink(ev.Kind, ev); err != nil {
		t.Fatalf("sink returned %v", err)
	}
	if !strings.Contains(buf.String(), "waiting_at_pass=2") {
		t.Errorf("Expected two lines waiting, got %s", buf.String())
	}
}
