package store

import (
	"context"
	"sync"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// MockStore is a test double for the Store interface
// It allows tests to control behavior and verify interactions
type MockStore struct {
	mu sync.Mutex

	// Data holds the mock data (IP address -> cache entry)
	Data map[string]models.CacheEntry

	// Track method calls for verification in tests
	GetCalls    []string
	PutCalls    []string
	ClearCalled bool
	CloseCalled bool

	// Control behavior for error scenarios
	GetError   error
	PutError   error
	CountError error
	ClearError error
	CloseError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		Data:     map[string]models.CacheEntry{},
		GetCalls: []string{},
		PutCalls: []string{},
	}
}

// Seed stores an entry directly, bypassing call tracking
func (m *MockStore) Seed(entry models.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[entry.IP] = entry
}

func (m *MockStore) Get(_ context.Context, ip string) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, ip)
	if m.GetError != nil {
		return nil, m.GetError
	}

	entry, exists := m.Data[ip]
	if !exists {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *MockStore) Put(_ context.Context, entry *models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, entry.IP)
	if m.PutError != nil {
		return m.PutError
	}
	m.Data[entry.IP] = *entry
	return nil
}

func (m *MockStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CountError != nil {
		return 0, m.CountError
	}
	return int64(len(m.Data)), nil
}

func (m *MockStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalled = true
	if m.ClearError != nil {
		return m.ClearError
	}
	m.Data = map[string]models.CacheEntry{}
	return nil
}

func (m *MockStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for ip, entry := range m.Data {
		if entry.StoredAt.Before(cutoff) {
			delete(m.Data, ip)
			removed++
		}
	}
	return removed, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalled = true
	return m.CloseError
}
