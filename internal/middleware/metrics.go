package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// routePattern labels by chi route pattern so batch IDs do not explode label cardinality
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Process the request
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			endpoint := routePattern(r)

			// Record metrics
			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				endpoint,
				status,
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				endpoint,
				status,
			).Observe(duration)

			m.HTTPResponseSize.WithLabelValues(
				r.Method,
				endpoint,
				status,
			).Observe(float64(rw.size))
		})
	}
}
