package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/dispatch"
	"github.com/mmynk/tableside/internal/inventory"
	"github.com/mmynk/tableside/internal/middleware"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/service"
)

func setupTestHandler(t *testing.T) (http.Handler, *dispatch.Bus) {
	t.Helper()

	ledger := inventory.New(nil)
	err := ledger.Load([]models.Ingredient{
		{ID: "lime", Name: "Lime", Unit: "pcs", Quantity: decimal.NewFromInt(2), MinThreshold: decimal.NewFromInt(10)},
		{ID: "mint", Name: "Mint", Unit: "g", Quantity: decimal.NewFromInt(300), MinThreshold: decimal.NewFromInt(50)},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	bus := dispatch.New()
	reg := prometheus.NewRegistry()
	deps := &service.Deps{Bus: bus, Ledger: ledger, Orders: service.NewOrders(), Pending: service.NewReconciler(nil)}

	h := NewHandler(Deps{
		Gatherer:    reg,
		HTTPMetrics: middleware.NewHTTPMetrics(reg),
		Kitchen:     service.NewKitchenService(deps),
		Ledger:      ledger,
		Pending:     deps.Pending,
	})
	return h, bus
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("Code = %d", rec.Code)
	}
	var body struct {
		Status        string `json:"status"`
		PendingWrites int    `json:"pending_writes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if body.Status != "ok" || body.PendingWrites != 0 {
		t.Errorf("Unexpected health: %+v", body)
	}
}

func TestKitchenAndReady(t *testing.T) {
	h, bus := setupTestHandler(t)

	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "l1"})
	bus.Publish(models.Event{Kind: models.EventLineAdded, OrderID: "o1", TableID: "T1", LineID: "l2"})
	bus.Publish(models.Event{Kind: models.EventLineStatusChanged, OrderID: "o1", TableID: "T1", LineID: "l2", From: models.LineCooking, To: models.LineReady})

	var queue []dispatch.KitchenTicket
	if err := json.NewDecoder(get(t, h, "/kitchen").Body).Decode(&queue); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(queue) != 1 || len(queue[0].Pending) != 1 || queue[0].Pending[0] != "l1" {
		t.Errorf("Unexpected queue: %+v", queue)
	}

	var ready []dispatch.ReadyOrder
	if err := json.NewDecoder(get(t, h, "/tables/T1/ready").Body).Decode(&ready); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(ready) != 1 || ready[0].LineIDs[0] != "l2" {
		t.Errorf("Unexpected ready orders: %+v", ready)
	}
}

func TestLowStock(t *testing.T) {
	h, _ := setupTestHandler(t)

	var items []models.LowStockItem
	if err := json.NewDecoder(get(t, h, "/low-stock").Body).Decode(&items); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(items) != 1 || items[0].IngredientID != "lime" || !items[0].Deficit.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Unexpected report: %+v", items)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setupTestHandler(t)

	get(t, h, "/healthz")
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/healthz",status="200"} 1`) {
		t.Errorf("Expected request counter in output:\n%s", rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := setupTestHandler(t)
	if rec := get(t, h, "/orders"); rec.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/kitchen", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Code = %d, want 405", rec.Code)
	}
}
