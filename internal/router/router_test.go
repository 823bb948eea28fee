package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/handler"
	"github.com/evyataryagoni/ipglobe/internal/limiter"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/evyataryagoni/ipglobe/internal/provider"
	"github.com/evyataryagoni/ipglobe/internal/service"
	"github.com/evyataryagoni/ipglobe/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

type staticProvider struct{}

func (staticProvider) Name() string { return provider.NameIPWho }

func (staticProvider) Resolve(_ context.Context, ip string) (models.LocationRecord, error) {
	return models.LocationRecord{IP: ip, Country: "United States", Lat: 37.386, Lng: -122.0838}, nil
}

func newTestRouter(t *testing.T, lim limiter.Limiter) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	c := cache.New(store.NewMemoryStore(), logger.Nop(), cache.WithMetrics(m))
	chain := provider.NewChain([]provider.Provider{staticProvider{}}, c, logger.Nop(), m)

	cfg := service.DefaultConfig()
	cfg.PaceInterval = time.Millisecond
	svc, err := service.NewLocateService(c, chain, cfg, m, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return SetupRouter(Handlers{
		Batches: handler.NewBatchHandler(svc, logger.Nop()),
		Cache:   handler.NewCacheHandler(c, "memory", logger.Nop()),
	}, lim, m, reg, logger.Nop())
}

// TestSetupRouter_Routes tests that every route is mounted
func TestSetupRouter_Routes(t *testing.T) {
	r := newTestRouter(t, limiter.NewMockLimiter(true))

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/v1/providers", "", http.StatusOK},
		{http.MethodGet, "/v1/locate?ip=8.8.8.8", "", http.StatusOK},
		{http.MethodPost, "/v1/batches", `{"input":""}`, http.StatusBadRequest},
		{http.MethodGet, "/v1/batches/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/v1/batches/unknown/clusters", "", http.StatusNotFound},
		{http.MethodGet, "/v1/cache/stats", "", http.StatusOK},
		{http.MethodPost, "/v1/cache/evict", "", http.StatusOK},
		{http.MethodDelete, "/v1/cache", "", http.StatusNoContent},
		{http.MethodGet, "/v1/find-country?ip=8.8.8.8", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

// TestSetupRouter_Metrics tests that /metrics exposes the application registry
func TestSetupRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, limiter.NewMockLimiter(true))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/locate?ip=8.8.8.8", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"http_requests_total", "provider_calls_total", "batch_outcomes_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

// TestSetupRouter_RateLimitScope tests that only the API is rate limited
func TestSetupRouter_RateLimitScope(t *testing.T) {
	r := newTestRouter(t, limiter.NewMockLimiter(false))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected health to bypass the limiter, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
}
