package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestMemoryLimiter_BasicRateLimit tests basic rate limiting functionality
func TestMemoryLimiter_BasicRateLimit(t *testing.T) {
	limiter := NewMemoryLimiter(5)
	defer limiter.Close()

	ctx := context.Background()
	ip := "192.168.1.1"

	// Burst of 5 is allowed
	for i := 0; i < 5; i++ {
		if !limiter.Allow(ctx, ip) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(ctx, ip) {
		t.Error("Request 6 should be rate limited")
	}

	// One token comes back every 200ms
	time.Sleep(250 * time.Millisecond)

	if !limiter.Allow(ctx, ip) {
		t.Error("Request should be allowed after refill")
	}
}

// TestMemoryLimiter_PerClientIsolation tests that different clients have separate limits
func TestMemoryLimiter_PerClientIsolation(t *testing.T) {
	limiter := NewMemoryLimiter(3)
	defer limiter.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "192.168.1.1") {
			t.Errorf("Request %d for client 1 should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "192.168.1.1") {
		t.Error("client 1 should be rate limited")
	}

	if !limiter.Allow(ctx, "192.168.1.2") {
		t.Error("client 2 should have its own bucket")
	}
}

// TestMemoryLimiter_FractionalRate tests rates below one request per second
func TestMemoryLimiter_FractionalRate(t *testing.T) {
	limiter := NewMemoryLimiter(0.2)
	ctx := context.Background()

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Error("first request should be allowed")
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Error("second request within 5s should be limited")
	}
}

// TestMemoryLimiter_Concurrency tests thread safety
func TestMemoryLimiter_Concurrency(t *testing.T) {
	limiter := NewMemoryLimiter(100)
	defer limiter.Close()

	ctx := context.Background()
	allowedCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	// 200 goroutines against a burst of 100
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "192.168.1.1") {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if allowedCount < 100 || allowedCount > 110 {
		t.Errorf("Expected ~100 allowed requests, got %d", allowedCount)
	}
}

// TestMemoryLimiter_Cleanup tests that idle clients are dropped
func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(10)
	ctx := context.Background()

	limiter.Allow(ctx, "10.0.0.1")

	limiter.mu.Lock()
	limiter.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	limiter.lastCleanup = time.Now().Add(-time.Hour)
	limiter.mu.Unlock()

	limiter.Allow(ctx, "10.0.0.2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.clients["10.0.0.1"]; ok {
		t.Error("expected idle client to be removed")
	}
	if _, ok := limiter.clients["10.0.0.2"]; !ok {
		t.Error("expected active client to be kept")
	}
}

func newTestRedisLimiter(t *testing.T, rps float64) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := newRedisLimiter(client, rps)
	t.Cleanup(func() { l.Close() })

	// Pin the clock so the test never straddles a window boundary
	fixed := time.UnixMilli(1700000000000)
	l.now = func() time.Time { return fixed }

	return l, mr
}

// TestRedisLimiter_FixedWindow tests the shared counter
func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "192.168.1.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "192.168.1.1") {
		t.Error("Request 4 should be rate limited")
	}
	if !l.Allow(ctx, "192.168.1.2") {
		t.Error("other clients should not share the counter")
	}

	key := "ratelimit:192.168.1.1:1700000000"
	if !mr.Exists(key) {
		t.Fatalf("expected key %s to exist, have %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Errorf("expected window key to expire, got ttl %v", ttl)
	}
}

// TestRedisLimiter_FractionalWindow tests the widened window for slow rates
func TestRedisLimiter_FractionalWindow(t *testing.T) {
	l, _ := newTestRedisLimiter(t, 0.2)

	if l.window != 5*time.Second {
		t.Errorf("expected 5s window, got %v", l.window)
	}
	if l.limit != 1 {
		t.Errorf("expected 1 request per window, got %d", l.limit)
	}
}

// TestRedisLimiter_FailOpen tests that Redis outages never block traffic
func TestRedisLimiter_FailOpen(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow(context.Background(), "192.168.1.1") {
			t.Error("expected request to be allowed when Redis is down")
		}
	}
}

func TestNewRedisLimiter_ConnectionFailure(t *testing.T) {
	if _, err := NewRedisLimiter("invalid:9999", "", 0, 10); err == nil {
		t.Error("expected connection error, got nil")
	}
}

// TestLimiterInterface tests that both limiters implement Limiter
func TestLimiterInterface(t *testing.T) {
	var _ Limiter = (*MemoryLimiter)(nil)
	var _ Limiter = (*RedisLimiter)(nil)
	var _ Limiter = (*MockLimiter)(nil)
}

// TestNewLimiter_Memory tests factory function for memory limiter
func TestNewLimiter_Memory(t *testing.T) {
	tests := []struct {
		name string
		cfg  LimiterConfig
	}{
		{"explicit memory type", LimiterConfig{Type: "memory", RequestsPerSecond: 10}},
		{"uppercase memory type", LimiterConfig{Type: "MEMORY", RequestsPerSecond: 10}},
		{"empty type defaults to memory", LimiterConfig{Type: "", RequestsPerSecond: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewLimiter(tt.cfg)
			if err != nil {
				t.Errorf("NewLimiter() error = %v", err)
				return
			}
			defer limiter.Close()

			if !limiter.Allow(context.Background(), "192.168.1.1") {
				t.Error("First request should be allowed")
			}
		})
	}
}

// TestNewLimiter_Redis tests factory function against miniredis
func TestNewLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewLimiter(LimiterConfig{Type: "redis", RedisAddr: mr.Addr(), RequestsPerSecond: 5})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	defer limiter.Close()

	if !limiter.Allow(context.Background(), "192.168.1.1") {
		t.Error("First request should be allowed")
	}
}

// TestNewLimiter_InvalidType tests factory function with invalid type
func TestNewLimiter_InvalidType(t *testing.T) {
	if _, err := NewLimiter(LimiterConfig{Type: "invalid", RequestsPerSecond: 10}); err == nil {
		t.Error("Expected error for invalid limiter type")
	}
}

// BenchmarkMemoryLimiter_Allow benchmarks the Allow method
func BenchmarkMemoryLimiter_Allow(b *testing.B) {
	limiter := NewMemoryLimiter(1000000)
	defer limiter.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow(ctx, "192.168.1.1")
	}
}
