package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/cluster"
	"github.com/evyataryagoni/ipglobe/internal/limiter"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/evyataryagoni/ipglobe/internal/provider"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ValidationError is a user-facing input problem, no batch is started
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyInput = &ValidationError{Message: "Please enter at least one IP address"}
	ErrNoValidIPs = &ValidationError{Message: "No valid IP addresses found"}

	// ErrBatchInProgress is returned when a batch is requested while another one is running
	ErrBatchInProgress = errors.New("a batch is already running")

	// ErrBatchNotFound is returned for unknown or evicted batch IDs
	ErrBatchNotFound = errors.New("batch not found")
)

// Sink receives progress from a running batch.
// OnOutcome is called from the batch goroutine, OnClusters may be called from a timer
// goroutine; neither is called concurrently with itself.
type Sink interface {
	OnOutcome(index int, outcome models.Outcome)
	OnClusters(update models.ClusterUpdate)
}

type nopSink struct{}

func (nopSink) OnOutcome(int, models.Outcome)     {}
func (nopSink) OnClusters(models.ClusterUpdate) {}

// Config tunes the orchestrator
type Config struct {
	DefaultProvider string
	PaceInterval    time.Duration
	Threshold       float64
	RefreshWindow   time.Duration
	History         int // how many finished batches stay retrievable
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		DefaultProvider: provider.ModeAuto,
		PaceInterval:    limiter.DefaultPaceInterval,
		Threshold:       cluster.DefaultThreshold,
		RefreshWindow:   cluster.DefaultWindow,
		History:         32,
	}
}

// LocateService resolves batches of IPs one at a time, strictly in input order.
//
// Flow per IP:
//  1. Cache lookup (skipped with BypassCache), a hit needs no pacing and no provider call
//  2. Pacer wait, then the provider chain in the batch's mode
//  3. Outcome appended in order, clusters refreshed (throttled) after each success
//
// A per-IP failure is recorded and the batch moves on; a final refresh runs when the list is done.
type LocateService struct {
	cache     *cache.LocationCache
	chain     *provider.Chain
	validator *validator.Validate
	cfg       Config
	metrics   *metrics.Metrics
	logger    *logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup
	batches *lru.Cache[string, *BatchRun]
	newID   func() string
}

// NewLocateService creates the orchestrator
// m may be nil
func NewLocateService(c *cache.LocationCache, chain *provider.Chain, cfg Config, m *metrics.Metrics, log *logger.Logger) (*LocateService, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	defaults := DefaultConfig()
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = defaults.DefaultProvider
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = defaults.RefreshWindow
	}
	if cfg.History <= 0 {
		cfg.History = defaults.History
	}

	batches, err := lru.New[string, *BatchRun](cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch registry: %w", err)
	}

	return &LocateService{
		cache:     c,
		chain:     chain,
		validator: validator.New(),
		cfg:       cfg,
		metrics:   m,
		logger:    log.WithComponent("LocateService"),
		batches:   batches,
		newID:     uuid.NewString,
	}, nil
}

// Providers returns the provider names in auto-mode order
func (s *LocateService) Providers() []string {
	return s.chain.Names()
}

// Locate validates req and runs the whole batch before returning.
// Progress is reported to sink, which may be nil.
func (s *LocateService) Locate(ctx context.Context, req models.BatchRequest, sink Sink) (*BatchRun, error) {
	run, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}
	defer s.running.Store(false)

	s.batches.Add(run.ID, run)
	s.execute(ctx, run, sink)
	return run, nil
}

// Start validates req and runs the batch in the background.
// The batch outlives ctx's cancellation, it only inherits its values.
func (s *LocateService) Start(ctx context.Context, req models.BatchRequest, sink Sink) (*BatchRun, error) {
	run, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}

	s.batches.Add(run.ID, run)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute(context.WithoutCancel(ctx), run, sink)
	}()

	return run, nil
}

// Running reports whether a batch is in flight
func (s *LocateService) Running() bool {
	return s.running.Load()
}

// Batch returns a retained batch by ID
func (s *LocateService) Batch(id string) (*BatchRun, error) {
	run, ok := s.batches.Get(id)
	if !ok {
		return nil, ErrBatchNotFound
	}
	return run, nil
}

// Wait blocks until background batches have finished
func (s *LocateService) Wait() {
	s.wg.Wait()
}

// prepare validates the request and builds an idle BatchRun
func (s *LocateService) prepare(req models.BatchRequest) (*BatchRun, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrEmptyInput
	}

	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if err := s.validator.Struct(req); err != nil {
		return nil, &ValidationError{Message: validationMessage(err)}
	}

	mode := req.Provider
	if mode == "" {
		mode = s.cfg.DefaultProvider
	}
	if !s.chain.Supports(mode) {
		return nil, &ValidationError{Message: fmt.Sprintf("Unknown provider: %s", mode)}
	}

	ips := ParseInput(req.Input)
	if len(ips) == 0 {
		return nil, ErrNoValidIPs
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.cfg.Threshold
	}

	return newBatchRun(s.newID(), mode, req.BypassCache, threshold, ips), nil
}

func (s *LocateService) execute(ctx context.Context, run *BatchRun, sink Sink) {
	if sink == nil {
		sink = nopSink{}
	}
	log := s.logger.WithBatch(run.ID)

	pacer := limiter.NewPacer(s.cfg.PaceInterval)
	refresher := cluster.NewRefresher(s.cfg.RefreshWindow, func(focus, final bool) {
		s.publish(run, sink, focus, final)
	})
	defer refresher.Stop()

	run.begin(time.Now())
	if s.metrics != nil {
		s.metrics.BatchesRunning.Inc()
		defer s.metrics.BatchesRunning.Dec()
	}

	log.Info().
		Int("ips", len(run.IPs)).
		Str("provider", run.Provider).
		Bool("bypass_cache", run.BypassCache).
		Msg("Batch started")

	firstSuccess := true
	for i, ip := range run.IPs {
		outcome := s.resolve(ctx, run, pacer, ip, log)
		run.record(outcome)
		sink.OnOutcome(i, outcome)
		s.countOutcome(outcome)

		if outcome.Succeeded() {
			refresher.Request(firstSuccess)
			firstSuccess = false
		}
	}

	refresher.Flush(false)
	run.finish(time.Now())

	status := run.Status(Filter{})
	log.Info().
		Int("found", status.Found).
		Int("failed", status.Failed).
		Dur("paced", pacer.Waited()).
		Dur("duration", run.Duration()).
		Msgf("Processed %d IPs: %d API calls, %d from cache", status.Total, status.LiveCalls, status.CacheHits)

	if s.metrics != nil {
		s.metrics.BatchesTotal.WithLabelValues(StateCompleted).Inc()
	}
}

// resolve produces the outcome for one IP, it never fails the batch
func (s *LocateService) resolve(ctx context.Context, run *BatchRun, pacer *limiter.Pacer, ip string, log *logger.Logger) models.Outcome {
	if !run.BypassCache {
		if record, ok := s.cache.Get(ctx, ip); ok {
			log.Debug().Str("ip", ip).Msg("Served from cache")
			return models.Outcome{IP: ip, Location: &record, Source: models.SourceCache}
		}
	}

	waited, err := pacer.BeforeLiveCall(ctx)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Pacer wait aborted")
		return models.Outcome{IP: ip, Error: err.Error()}
	}
	if s.metrics != nil {
		s.metrics.PacerWaitSeconds.Observe(waited.Seconds())
	}

	record, err := s.chain.Resolve(ctx, ip, run.Provider)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("IP resolution failed")
		return models.Outcome{IP: ip, Error: err.Error(), Source: models.SourceLive}
	}

	log.Debug().
		Str("ip", ip).
		Str("city", record.City).
		Str("country", record.Country).
		Msg("Resolved live")
	return models.Outcome{IP: ip, Location: &record, Source: models.SourceLive}
}

// publish recomputes clusters from everything resolved so far
func (s *LocateService) publish(run *BatchRun, sink Sink, focus, final bool) {
	records := run.resolvedRecords()
	update := models.ClusterUpdate{
		BatchID:       run.ID,
		Clusters:      cluster.Cluster(records, run.Threshold),
		Focus:         focus,
		Final:         final,
		ResolvedCount: len(records),
	}

	run.setClusters(update)
	sink.OnClusters(update)

	if s.metrics != nil {
		kind := "throttled"
		if final {
			kind = "final"
		}
		s.metrics.ClusterRefreshes.WithLabelValues(kind).Inc()
	}
}

func (s *LocateService) countOutcome(o models.Outcome) {
	if s.metrics == nil {
		return
	}
	switch {
	case !o.Succeeded():
		s.metrics.BatchOutcomes.WithLabelValues("failed").Inc()
	case o.Source == models.SourceCache:
		s.metrics.BatchOutcomes.WithLabelValues(models.SourceCache).Inc()
	default:
		s.metrics.BatchOutcomes.WithLabelValues(models.SourceLive).Inc()
	}
}

// validationMessage turns validator errors into a short sentence
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("Unknown provider: %v", fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
