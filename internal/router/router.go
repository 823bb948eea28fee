package router

import (
	"net/http"

	"github.com/evyataryagoni/ipglobe/internal/handler"
	"github.com/evyataryagoni/ipglobe/internal/limiter"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	custommiddleware "github.com/evyataryagoni/ipglobe/internal/middleware"
	v1 "github.com/evyataryagoni/ipglobe/internal/router/v1"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the HTTP handlers mounted under /v1
type Handlers struct {
	Batches *handler.BatchHandler
	Cache   *handler.CacheHandler
}

// SetupRouter creates the chi router with all middleware and routes
// gatherer backs /metrics and must be the registry m was registered on
func SetupRouter(h Handlers, rateLimiter limiter.Limiter, m *metrics.Metrics, gatherer prometheus.Gatherer, log *logger.Logger) chi.Router {
	r := chi.NewRouter()

	// Order matters: request ID before logging, real IP before rate limiting
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.MetricsMiddleware(m))

	// Probes stay outside the rate limit
	r.Get("/health", healthCheckHandler)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.RateLimitMiddleware(rateLimiter))
		r.Mount("/v1", v1.SetupRoutes(h.Batches, h.Cache))
	})

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
