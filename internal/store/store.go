package store

import (
	"context"
	"errors"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// ErrNotFound is returned by Get when no entry exists for the IP
var ErrNotFound = errors.New("cache entry not found")

// Store defines the durable key-value backend behind the location cache
// Allows multiple implementations (memory, file, Redis, MySQL) and easy testing with mocks
//
// Stores know nothing about freshness; the TTL policy lives in the cache package.
// StoredAt is the freshness index used by DeleteOlderThan.
type Store interface {
	// Get returns the entry stored for ip or ErrNotFound
	Get(ctx context.Context, ip string) (*models.CacheEntry, error)

	// Put upserts the entry keyed by entry.IP
	Put(ctx context.Context, entry *models.CacheEntry) error

	// Count returns the number of stored entries
	Count(ctx context.Context) (int64, error)

	// Clear removes every entry
	Clear(ctx context.Context) error

	// DeleteOlderThan removes entries stored before cutoff and returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close cleans up resources (database connections, file handles, etc.)
	Close() error
}
