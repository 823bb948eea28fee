package store

import (
	"fmt"
	"strings"
)

// Config holds configuration for creating a cache store
type Config struct {
	Type     string // "memory", "file", "redis" or "mysql"
	FilePath string // CSV path for the file store

	MySQLDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New creates a store based on the configuration (factory pattern)
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "memory", "":
		return NewMemoryStore(), nil

	case "file":
		s, err := NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}
		return s, nil

	case "redis":
		s, err := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		return s, nil

	case "mysql":
		s, err := NewMySQLStore(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create MySQL store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown cache store type: %s (supported: 'memory', 'file', 'redis', 'mysql')", cfg.Type)
	}
}
