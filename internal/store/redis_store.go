package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "loc:"
	// Sorted set of cached IPs scored by stored-at unix millis (the freshness index)
	redisIndexKey = "loc:index"
)

// RedisStore implements Store interface using Redis
//
// Redis Key Format: loc:<ip_address>
// Example: loc:8.8.8.8
// Value: JSON-encoded CacheEntry
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number (0-15, default is 0)
//
// Returns:
//   - *RedisStore: pointer to the created store
//   - error: any error that occurred during connection
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func redisKey(ip string) string {
	return redisKeyPrefix + ip
}

func (s *RedisStore) Get(ctx context.Context, ip string) (*models.CacheEntry, error) {
	val, err := s.client.Get(ctx, redisKey(ip)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &entry, nil
}

// Put writes the entry and its index score in one transaction
func (s *RedisStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(entry.IP), data, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(entry.StoredAt.UnixMilli()),
			Member: entry.IP,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}

	return nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count Redis entries: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	ips, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list Redis entries: %w", err)
	}

	return s.remove(ctx, ips, true)
}

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// Exclusive upper bound: entries stored exactly at cutoff stay
	ips, err := s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan Redis index: %w", err)
	}
	if len(ips) == 0 {
		return 0, nil
	}

	if err := s.remove(ctx, ips, false); err != nil {
		return 0, err
	}
	return int64(len(ips)), nil
}

func (s *RedisStore) remove(ctx context.Context, ips []string, dropIndex bool) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(ips) > 0 {
			keys := make([]string, len(ips))
			members := make([]interface{}, len(ips))
			for i, ip := range ips {
				keys[i] = redisKey(ip)
				members[i] = ip
			}
			pipe.Del(ctx, keys...)
			if !dropIndex {
				pipe.ZRem(ctx, redisIndexKey, members...)
			}
		}
		if dropIndex {
			pipe.Del(ctx, redisIndexKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete Redis entries: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
