// Package cache holds the Redis-backed pieces of the service: the auth
// context cache, the token-bucket rate limiter and the dashboard counts.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolOptions bounds the Redis connection pool. Zero values use go-redis defaults.
type PoolOptions struct {
	Size         int
	MinIdleConns int
}

// Cache wraps the shared Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection with a PING.
func New(ctx context.Context, redisURL string, opts PoolOptions) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Size > 0 {
		opt.PoolSize = opts.Size
	}
	if opts.MinIdleConns > 0 {
		opt.MinIdleConns = opts.MinIdleConns
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client. Tests use it with miniredis.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping satisfies the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the connection for the event publisher, which shares it.
func (c *Cache) Client() *redis.Client {
	return c.client
}
