package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestPacer_FirstCallImmediate tests that nothing waits before the first live call
func TestPacer_FirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	if _, err := p.BeforeLiveCall(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected first call to be immediate, took %v", elapsed)
	}
	if p.LiveCalls() != 1 {
		t.Errorf("expected 1 live call, got %d", p.LiveCalls())
	}
}

// TestPacer_Spacing tests that N calls take at least (N-1) intervals
func TestPacer_Spacing(t *testing.T) {
	interval := 60 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	starts := make([]time.Time, 0, 3)
	begin := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.BeforeLiveCall(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		starts = append(starts, time.Now())
	}

	// rate.Limiter reservations are computed with sub-millisecond precision,
	// allow a little slack for timer granularity
	slack := 5 * time.Millisecond
	if total := time.Since(begin); total < 2*interval-slack {
		t.Errorf("expected at least %v for 3 calls, took %v", 2*interval, total)
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval-slack {
			t.Errorf("gap %d was %v, expected at least %v", i, gap, interval)
		}
	}

	if p.LiveCalls() != 3 {
		t.Errorf("expected 3 live calls, got %d", p.LiveCalls())
	}
	if p.Waited() < interval {
		t.Errorf("expected accumulated wait of at least %v, got %v", interval, p.Waited())
	}
}

// TestPacer_IdleTimeCounts tests that time spent elsewhere shortens the next wait
func TestPacer_IdleTimeCounts(t *testing.T) {
	interval := 50 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	p.BeforeLiveCall(ctx)
	time.Sleep(interval + 10*time.Millisecond)

	waited, err := p.BeforeLiveCall(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waited > 10*time.Millisecond {
		t.Errorf("expected no wait once the interval already elapsed, waited %v", waited)
	}
}

// TestPacer_ContextCancelled tests that a cancelled wait returns the context error
func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(time.Hour)

	p.BeforeLiveCall(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.BeforeLiveCall(ctx); err == nil {
		t.Fatal("expected error when waiting past the context deadline")
	}
	if p.LiveCalls() != 1 {
		t.Errorf("expected the cancelled wait not to count, got %d calls", p.LiveCalls())
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if _, err := p.BeforeLiveCall(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestPacer_Disabled tests a zero interval
func TestPacer_Disabled(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		p.BeforeLiveCall(context.Background())
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no waiting with a zero interval, took %v", elapsed)
	}
}
