package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pravesh-commerce/api/internal/platform/config"
)

// RedisClient implements Client on top of a Redis server.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient dials Redis using the supplied configuration and verifies
// connectivity with a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return &RedisClient{rdb: rdb}, nil
}

// Get implements Client.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return value, nil
}

// Set implements Client.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Client.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// DeleteByPattern implements Client. It walks matching keys with SCAN so a
// large keyspace does not block the server the way KEYS would.
func (c *RedisClient) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache: delete by pattern %s: %w", pattern, err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan %s: %w", pattern, err)
	}
	return flush()
}

// Close implements Client.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

var _ Client = (*RedisClient)(nil)
