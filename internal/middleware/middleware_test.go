package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLogging_PassesThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Code = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("Body = %q", rec.Body.String())
	}
}

func TestHTTPMetrics(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	ok := m.Wrap("/kitchen", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	missing := m.Wrap("/kitchen", http.NotFoundHandler())

	for i := 0; i < 3; i++ {
		ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/kitchen", nil))
	}
	missing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/kitchen", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/kitchen", "200")); got != 3 {
		t.Errorf("200 responses = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/kitchen", "404")); got != 1 {
		t.Errorf("404 responses = %v, want 1", got)
	}
}
