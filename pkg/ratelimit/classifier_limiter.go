// Package ratelimit provides Redis-backed rate limiting for outbound calls.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"classifier_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements out.RateLimiter with a sliding window over a
// Redis sorted set. Workers use it to throttle LLM calls across processes.
type RedisRateLimiter struct {
	redis *redis.Client
}

// NewRedisRateLimiter creates a new sliding window rate limiter.
func NewRedisRateLimiter(redisClient *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{redis: redisClient}
}

// allowScript atomically trims the window, counts entries, and records the
// request when under the limit.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	return 0
`)

func limiterKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow reports whether one more request fits in the window, recording it
// when allowed. Without Redis the limiter fails open.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.redis == nil {
		return true, nil
	}

	now := time.Now()
	windowStart := now.Add(-window)

	result, err := allowScript.Run(ctx, l.redis,
		[]string{limiterKey(key)},
		now.UnixMilli(), windowStart.UnixMilli(), limit, window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return result == 1, nil
}

// Remaining returns how many requests are left in the current window.
func (l *RedisRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	if l.redis == nil {
		return limit, nil
	}

	windowStart := time.Now().Add(-window)
	redisKey := limiterKey(key)

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
	count := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit count failed: %w", err)
	}

	remaining := limit - int(count.Val())
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Reset clears the window for a key.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if l.redis == nil {
		return nil
	}
	return l.redis.Del(ctx, limiterKey(key)).Err()
}

var _ out.RateLimiter = (*RedisRateLimiter)(nil)
