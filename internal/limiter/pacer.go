package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPaceInterval is the minimum spacing between two live provider calls
const DefaultPaceInterval = 1500 * time.Millisecond

// Pacer spaces out live provider lookups within one batch.
// The first call goes through immediately, every later call waits until the
// interval has elapsed since the previous call was let through.
// Cache hits never reach the pacer.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration

	mu     sync.Mutex
	calls  int
	waited time.Duration
}

// NewPacer creates a pacer, a non-positive interval disables waiting
func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval returns the configured spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// BeforeLiveCall blocks until the next live call may start
// It returns the context error if ctx ends first, the call slot is then not consumed
func (p *Pacer) BeforeLiveCall(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	waited := time.Since(start)

	p.mu.Lock()
	p.calls++
	p.waited += waited
	p.mu.Unlock()

	return waited, nil
}

// LiveCalls returns how many calls the pacer has let through
func (p *Pacer) LiveCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Waited returns the total time spent blocked in BeforeLiveCall
func (p *Pacer) Waited() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waited
}
