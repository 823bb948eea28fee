// Package cache implements the 30-day location cache that sits in front of the providers.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/evyataryagoni/ipglobe/internal/store"
)

// DefaultTTL is how long a stored location stays servable
const DefaultTTL = 30 * 24 * time.Hour

// LocationCache applies the freshness policy on top of a Store
// Reads and writes never fail the caller: a store error is logged and degrades to a miss
type LocationCache struct {
	store   store.Store
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a LocationCache
type Option func(*LocationCache)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(c *LocationCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, used by tests to move across the TTL boundary
func WithClock(now func() time.Time) Option {
	return func(c *LocationCache) {
		c.now = now
	}
}

// WithMetrics records lookups and writes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *LocationCache) {
		c.metrics = m
	}
}

// New creates a LocationCache over s
func New(s store.Store, log *logger.Logger, opts ...Option) *LocationCache {
	c := &LocationCache{
		store: s,
		ttl:   DefaultTTL,
		now:   time.Now,
		log:   log.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured freshness window
func (c *LocationCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored record for ip if it was written less than TTL ago
// Expired entries are left in place, the next Put for the same IP overwrites them
func (c *LocationCache) Get(ctx context.Context, ip string) (models.LocationRecord, bool) {
	start := time.Now()
	entry, err := c.store.Get(ctx, ip)
	c.observe("get", start)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.count("miss")
			return models.LocationRecord{}, false
		}
		c.log.Warn().Err(err).Str("ip", ip).Msg("Cache read failed, treating as miss")
		c.count("error")
		return models.LocationRecord{}, false
	}

	if c.now().Sub(entry.StoredAt) >= c.ttl {
		c.count("expired")
		return models.LocationRecord{}, false
	}

	c.count("hit")
	return entry.Location, true
}

// Put stores record for ip stamped with the current time, replacing any previous entry
func (c *LocationCache) Put(ctx context.Context, ip string, record models.LocationRecord) {
	entry := &models.CacheEntry{
		IP:       ip,
		Location: record,
		StoredAt: c.now(),
	}

	start := time.Now()
	err := c.store.Put(ctx, entry)
	c.observe("put", start)

	if err != nil {
		c.log.Warn().Err(err).Str("ip", ip).Msg("Cache write failed")
		if c.metrics != nil {
			c.metrics.CacheWrites.WithLabelValues("error").Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.CacheWrites.WithLabelValues("success").Inc()
	}
}

// Count returns the number of stored entries, fresh or not
func (c *LocationCache) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// Clear removes every entry
func (c *LocationCache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.log.Info().Msg("Cache cleared")
	return nil
}

// Evict deletes entries that are already past the TTL and returns how many were removed
func (c *LocationCache) Evict(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl)

	start := time.Now()
	removed, err := c.store.DeleteOlderThan(ctx, cutoff)
	c.observe("evict", start)
	if err != nil {
		return 0, err
	}

	if c.metrics != nil {
		c.metrics.CacheEvicted.Add(float64(removed))
	}
	c.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Expired cache entries evicted")
	return removed, nil
}

func (c *LocationCache) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (c *LocationCache) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
