package cluster

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum spacing between two throttled refreshes
const DefaultWindow = 300 * time.Millisecond

// RefreshFunc recomputes and publishes clusters
// focus asks the viewer to recenter, final marks the end-of-batch pass
type RefreshFunc func(focus, final bool)

// Refresher coalesces refresh requests into at most one run per window.
//
// A request runs immediately when the window since the last run has elapsed. Otherwise a single
// run is scheduled for the end of the window, and any further requests before it fires fold into it.
// Flush runs immediately, replacing anything pending, and after it only another Flush runs.
type Refresher struct {
	window time.Duration
	fn     RefreshFunc
	now    func() time.Time

	mu           sync.Mutex
	lastRun      time.Time
	timer        *time.Timer
	pending      bool
	pendingFocus bool
	stopped      bool

	// runMu serializes fn so a late timer never overlaps or follows the final pass
	runMu   sync.Mutex
	flushed bool
}

// NewRefresher creates a refresher, a non-positive window means DefaultWindow
func NewRefresher(window time.Duration, fn RefreshFunc) *Refresher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Refresher{
		window: window,
		fn:     fn,
		now:    time.Now,
	}
}

// Request asks for a throttled refresh
func (r *Refresher) Request(focus bool) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}

	if r.pending {
		r.pendingFocus = r.pendingFocus || focus
		r.mu.Unlock()
		return
	}

	now := r.now()
	elapsed := now.Sub(r.lastRun)
	if r.lastRun.IsZero() || elapsed >= r.window {
		r.lastRun = now
		r.mu.Unlock()
		r.run(focus, false)
		return
	}

	r.pending = true
	r.pendingFocus = focus
	r.timer = time.AfterFunc(r.window-elapsed, r.fire)
	r.mu.Unlock()
}

// Flush cancels any pending refresh and runs the final one now
func (r *Refresher) Flush(focus bool) {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	focus = focus || (r.pending && r.pendingFocus)
	r.pending = false
	r.pendingFocus = false
	r.lastRun = r.now()
	r.mu.Unlock()

	r.run(focus, true)
}

// Stop drops any pending refresh and ignores later requests
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	r.pending = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Pending reports whether a throttled refresh is waiting for its window
func (r *Refresher) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *Refresher) fire() {
	r.mu.Lock()
	if !r.pending || r.stopped {
		r.mu.Unlock()
		return
	}
	focus := r.pendingFocus
	r.pending = false
	r.pendingFocus = false
	r.timer = nil
	r.lastRun = r.now()
	r.mu.Unlock()

	r.run(focus, false)
}

func (r *Refresher) run(focus, final bool) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.flushed && !final {
		return
	}
	r.fn(focus, final)
	if final {
		r.flushed = true
	}
}
