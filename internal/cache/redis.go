package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/fleet/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrDisabled is returned by every operation of a disabled cache
var ErrDisabled = errors.New("cache is disabled")

// ErrMiss is returned when a key is not cached
var ErrMiss = errors.New("key not found in cache")

// RedisCache provides caching of hydrated read models using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache. A disabled configuration yields a
// cache whose operations all fail with ErrDisabled.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, enabled: true, ttl: ttl}
}

// Enabled reports whether the cache is backed by Redis
func (c *RedisCache) Enabled() bool {
	return c.enabled
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return ErrDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a value in cache. A zero expiration uses the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return ErrDisabled
	}
	if expiration == 0 {
		expiration = c.ttl
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// Delete removes keys from the cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete keys from Redis")
	}
	return nil
}

// DeliveryKey generates a cache key for a hydrated delivery
func DeliveryKey(id string) string {
	return fmt.Sprintf("delivery:%s", id)
}

// ContainerKey generates a cache key for a hydrated container
func ContainerKey(id string) string {
	return fmt.Sprintf("container:%s", id)
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}
	return errors.Wrap(c.client.Ping(ctx).Err(), "failed to ping Redis")
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
