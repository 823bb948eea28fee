package service

import (
	"sync"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// Batch states
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
)

// BatchRun owns everything one resolution batch produces.
// It is built fresh for each batch and is safe to read while the batch is running.
type BatchRun struct {
	ID          string
	Provider    string
	BypassCache bool
	Threshold   float64
	IPs         []string

	mu         sync.RWMutex
	state      string
	outcomes   []models.Outcome
	found      int
	failed     int
	cacheHits  int
	liveCalls  int
	clusters   models.ClusterUpdate
	startedAt  time.Time
	finishedAt time.Time
}

func newBatchRun(id, provider string, bypassCache bool, threshold float64, ips []string) *BatchRun {
	return &BatchRun{
		ID:          id,
		Provider:    provider,
		BypassCache: bypassCache,
		Threshold:   threshold,
		IPs:         ips,
		state:       StateIdle,
		outcomes:    make([]models.Outcome, 0, len(ips)),
		clusters:    models.ClusterUpdate{BatchID: id, Clusters: []models.Cluster{}},
	}
}

// State returns idle, running or completed
func (b *BatchRun) State() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Outcomes returns a copy of the outcomes recorded so far, in input order
func (b *BatchRun) Outcomes() []models.Outcome {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Outcome, len(b.outcomes))
	copy(out, b.outcomes)
	return out
}

// Clusters returns the most recently published cluster update
func (b *BatchRun) Clusters() models.ClusterUpdate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clusters
}

// Duration is the wall time of the batch, up to now while it is running
func (b *BatchRun) Duration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch {
	case b.startedAt.IsZero():
		return 0
	case b.finishedAt.IsZero():
		return time.Since(b.startedAt)
	default:
		return b.finishedAt.Sub(b.startedAt)
	}
}

// Status builds the progress view, with outcomes narrowed by f
// Filter options are always computed over the unfiltered outcomes
func (b *BatchRun) Status(f Filter) models.BatchStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]models.Outcome, len(b.outcomes))
	copy(all, b.outcomes)

	return models.BatchStatus{
		BatchID:   b.ID,
		State:     b.state,
		Provider:  b.Provider,
		Total:     len(b.IPs),
		Found:     b.found,
		Failed:    b.failed,
		LiveCalls: b.liveCalls,
		CacheHits: b.cacheHits,
		Outcomes:  f.Apply(all),
		Options:   BuildFilterOptions(all),
	}
}

func (b *BatchRun) begin(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateRunning
	b.startedAt = now
}

func (b *BatchRun) finish(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateCompleted
	b.finishedAt = now
}

func (b *BatchRun) record(o models.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes = append(b.outcomes, o)
	if o.Succeeded() {
		b.found++
	} else {
		b.failed++
	}

	switch o.Source {
	case models.SourceCache:
		b.cacheHits++
	case models.SourceLive:
		b.liveCalls++
	}
}

// resolvedRecords returns the successful locations in input order, keyed by the requested IP
func (b *BatchRun) resolvedRecords() []models.LocationRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := make([]models.LocationRecord, 0, b.found)
	for _, o := range b.outcomes {
		if !o.Succeeded() {
			continue
		}
		r := *o.Location
		r.IP = o.IP
		records = append(records, r)
	}
	return records
}

func (b *BatchRun) setClusters(u models.ClusterUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clusters = u
}
