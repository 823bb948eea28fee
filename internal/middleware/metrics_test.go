package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsMiddleware_RoutePatternLabel tests that path parameters are not used as labels
func TestMetricsMiddleware_RoutePatternLabel(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.Get("/v1/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/batches/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/batches/{id}", "404"))
	if got != 3 {
		t.Errorf("expected 3 requests under the route pattern, got %v", got)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestsTotal); n != 1 {
		t.Errorf("expected a single label set, got %d", n)
	}
}

// TestMetricsMiddleware_DefaultStatus tests handlers that never call WriteHeader
func TestMetricsMiddleware_DefaultStatus(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")); got != 1 {
		t.Errorf("expected 1 request with status 200, got %v", got)
	}
}
