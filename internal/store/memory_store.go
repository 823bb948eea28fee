package store

import (
	"context"
	"sync"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// MemoryStore keeps entries in a map for the lifetime of the process
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.CacheEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]models.CacheEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, ip string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[ip]
	if !exists {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[entry.IP] = *entry
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]models.CacheEntry)
	return nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for ip, entry := range s.data {
		if entry.StoredAt.Before(cutoff) {
			delete(s.data, ip)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op, there is nothing to release
func (s *MemoryStore) Close() error {
	return nil
}
