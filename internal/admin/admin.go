// Package admin serves the operator endpoints of the process: metrics,
// health, the kitchen queue and the low-stock report. All endpoints are
// read-only.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/tableside/internal/inventory"
	"github.com/mmynk/tableside/internal/middleware"
	"github.com/mmynk/tableside/internal/models"
	"github.com/mmynk/tableside/internal/service"
)

type Deps struct {
	Gatherer    prometheus.Gatherer
	HTTPMetrics *middleware.HTTPMetrics
	Kitchen     *service.KitchenService
	Ledger      *inventory.Ledger
	Pending     *service.Reconciler
}

// NewHandler returns the admin mux wrapped with request logging.
func NewHandler(d Deps) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, path string, h http.Handler) {
		if d.HTTPMetrics != nil {
			h = d.HTTPMetrics.Wrap(path, h)
		}
		mux.Handle(pattern, h)
	}

	handle("GET /metrics", "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	handle("GET /healthz", "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":         "ok",
			"pending_writes": d.Pending.Pending(),
			"training_mode":  d.Ledger.TrainingMode(),
		})
	}))
	handle("GET /kitchen", "/kitchen", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Kitchen.Queue())
	}))
	handle("GET /tables/{table}/ready", "/tables/ready", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Kitchen.ReadyForTable(r.PathValue("table")))
	}))
	handle("GET /low-stock", "/low-stock", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := slices.Collect(d.Ledger.LowStockReport())
		if items == nil {
			items = []models.LowStockItem{}
		}
		writeJSON(w, items)
	}))

	return middleware.Logging(mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
