// Package cache provides the Redis implementation of the cache port.
package cache

import (
	"context"
	"time"

	"classifier_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

const lockValue = "locked"

// RedisCache implements out.Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a value. Missing keys return nil without an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// Set stores a value with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Exists reports whether a key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	return result > 0, err
}

// GetString retrieves a string value. Missing keys return "".
func (c *RedisCache) GetString(ctx context.Context, key string) (string, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return data, err
}

// SetString stores a string value with a TTL.
func (c *RedisCache) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Incr increments a counter.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// IncrBy increments a counter by the given amount.
func (c *RedisCache) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	return c.client.IncrBy(ctx, key, value).Result()
}

// Expire sets a TTL on an existing key.
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// TTL returns the remaining TTL of a key.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, key).Result()
}

// HGet retrieves one hash field. Missing fields return nil.
func (c *RedisCache) HGet(ctx context.Context, key, field string) ([]byte, error) {
	data, err := c.client.HGet(ctx, key, field).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// HSet stores one hash field.
func (c *RedisCache) HSet(ctx context.Context, key, field string, value []byte) error {
	return c.client.HSet(ctx, key, field, value).Err()
}

// HGetAll retrieves every field of a hash.
func (c *RedisCache) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(fields))
	for field, value := range fields {
		result[field] = []byte(value)
	}

	return result, nil
}

// HDel removes hash fields.
func (c *RedisCache) HDel(ctx context.Context, key string, fields ...string) error {
	return c.client.HDel(ctx, key, fields...).Err()
}

// Lock acquires a best-effort distributed lock. Returns false when another
// holder already owns it.
func (c *RedisCache) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, lockValue, ttl).Result()
}

// Unlock releases a lock.
func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Close closes the underlying connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ out.Cache = (*RedisCache)(nil)
