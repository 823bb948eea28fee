package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter guards the HTTP API per client key (usually the client IP)
type Limiter interface {
	// Allow reports whether one more request from key may proceed
	Allow(ctx context.Context, key string) bool

	// Close releases connections and background state
	Close() error
}

// clientEntry is one client's token bucket plus the last time it was used
type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process memory.
// Suitable for single-server deployments.
type MemoryLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	clients     map[string]*clientEntry
	idleAfter   time.Duration
	lastCleanup time.Time
}

// NewMemoryLimiter creates an in-memory limiter
//
// Parameters:
//   - requestsPerSecond: sustained rate per client (can be fractional, e.g., 0.2)
//
// The burst equals one second worth of requests, at least 1.
func NewMemoryLimiter(requestsPerSecond float64) *MemoryLimiter {
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &MemoryLimiter{
		limit:       rate.Limit(requestsPerSecond),
		burst:       burst,
		clients:     make(map[string]*clientEntry),
		idleAfter:   5 * time.Minute,
		lastCleanup: time.Now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.clients[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	l.cleanupLocked(now)
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// cleanupLocked drops clients idle for longer than idleAfter, at most once per idleAfter
func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.idleAfter {
		return
	}

	threshold := now.Add(-l.idleAfter)
	for key, entry := range l.clients {
		if entry.lastSeen.Before(threshold) {
			delete(l.clients, key)
		}
	}
	l.lastCleanup = now
}

// Close is a no-op for the in-memory limiter
func (l *MemoryLimiter) Close() error {
	return nil
}
