package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMemoryStore_Operations tests the full store contract on the in-memory backend
func TestMemoryStore_Operations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "8.8.8.8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	s.Put(ctx, testEntry("8.8.8.8", "Mountain View", time.UnixMilli(1000)))
	s.Put(ctx, testEntry("8.8.8.8", "San Francisco", time.UnixMilli(2000)))
	s.Put(ctx, testEntry("1.1.1.1", "Sydney", time.UnixMilli(9000)))

	entry, err := s.Get(ctx, "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Location.City != "San Francisco" {
		t.Errorf("expected last put to win, got '%s'", entry.Location.City)
	}

	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	removed, _ := s.DeleteOlderThan(ctx, time.UnixMilli(5000))
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	s.Clear(ctx)
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected 0 entries after clear, got %d", n)
	}
}

// TestNew_Factory tests store selection by type
func TestNew_Factory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty type defaults to memory", Config{}, false},
		{"uppercase memory", Config{Type: "MEMORY"}, false},
		{"file", Config{Type: "file", FilePath: t.TempDir() + "/cache.csv"}, false},
		{"unknown", Config{Type: "cassandra"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer s.Close()
		})
	}
}
