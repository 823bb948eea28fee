package limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and sets its expiry on first use
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window counter shared by every server instance
//
// Key format: "ratelimit:{client}:{window}"
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter connects to Redis and creates a shared limiter
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number
//   - requestsPerSecond: allowed requests per second per client (can be fractional)
func NewRedisLimiter(addr, password string, db int, requestsPerSecond float64) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	return newRedisLimiter(client, requestsPerSecond), nil
}

func newRedisLimiter(client *redis.Client, requestsPerSecond float64) *RedisLimiter {
	// Fractional rates get a longer window: 0.2 req/s is 1 request per 5 second window
	window := time.Second
	if requestsPerSecond > 0 && requestsPerSecond < 1.0 {
		window = time.Duration(float64(time.Second) / requestsPerSecond)
	}

	return &RedisLimiter{
		client: client,
		limit:  int64(math.Ceil(requestsPerSecond * window.Seconds())),
		window: window,
		now:    time.Now,
	}
}

// Allow fails open: a Redis error lets the request through
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	bucket := l.now().UnixMilli() / l.window.Milliseconds()
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, (2 * l.window).Milliseconds()).Int64()
	if err != nil {
		return true
	}

	return count <= l.limit
}

// Close closes the Redis connection
func (l *RedisLimiter) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
