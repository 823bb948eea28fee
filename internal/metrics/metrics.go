package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Cache Metrics
	CacheLookups  *prometheus.CounterVec // result: hit, miss, expired, error
	CacheWrites   *prometheus.CounterVec // status: success, error
	CacheEvicted  prometheus.Counter
	StoreDuration *prometheus.HistogramVec

	// Provider Metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Pacer Metrics
	PacerWaitSeconds prometheus.Histogram

	// Batch Metrics
	BatchesTotal     *prometheus.CounterVec
	BatchesRunning   prometheus.Gauge
	BatchOutcomes    *prometheus.CounterVec // source: cache, live, failed
	ClusterRefreshes *prometheus.CounterVec // kind: throttled, final
}

// New creates all Prometheus metrics and registers them with the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics on reg
// Tests pass prometheus.NewRegistry() so repeated construction never collides
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP Metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint", "status"},
		),

		// Cache Metrics
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_cache_lookups_total",
				Help: "Location cache lookups by result",
			},
			[]string{"result"},
		),

		CacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_cache_writes_total",
				Help: "Location cache writes by status",
			},
			[]string{"status"},
		),

		CacheEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "location_cache_evicted_total",
				Help: "Expired entries removed from the location cache",
			},
		),

		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "location_store_operation_duration_seconds",
				Help:    "Cache store operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Provider Metrics
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Geolocation provider calls by provider and status",
			},
			[]string{"provider", "status"},
		),

		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "Geolocation provider call latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),

		// Pacer Metrics
		PacerWaitSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pacer_wait_seconds",
				Help:    "Time spent waiting for the call pacer before a live lookup",
				Buckets: []float64{0, .1, .5, 1, 1.5, 2, 5},
			},
		),

		// Batch Metrics
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batches_total",
				Help: "Resolution batches by terminal state",
			},
			[]string{"result"},
		),

		BatchesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batches_running",
				Help: "Number of resolution batches currently running",
			},
		),

		BatchOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_outcomes_total",
				Help: "Per-IP batch outcomes by source",
			},
			[]string{"source"},
		),

		ClusterRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cluster_refreshes_total",
				Help: "Cluster recomputations handed to the visualization side",
			},
			[]string{"kind"},
		),
	}
}
