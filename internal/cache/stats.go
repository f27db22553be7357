package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizpermit/permitdesk/internal/model"
)

const statsKey = "stats:applications"

// ErrCacheMiss is returned when an entry is absent.
var ErrCacheMiss = errors.New("cache miss")

// GetStatusCounts returns the cached dashboard counts.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetStatusCounts(ctx context.Context) (model.StatusCounts, error) {
	var counts model.StatusCounts

	data, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return counts, ErrCacheMiss
	}
	if err != nil {
		return counts, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, &counts); err != nil {
		return counts, ErrCacheMiss
	}
	return counts, nil
}

// SetStatusCounts stores the dashboard counts for ttl.
func (c *Cache) SetStatusCounts(ctx context.Context, counts model.StatusCounts, ttl time.Duration) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal status counts: %w", err)
	}
	return c.client.Set(ctx, statsKey, data, ttl).Err()
}

// InvalidateStatusCounts drops the cached dashboard counts.
func (c *Cache) InvalidateStatusCounts(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}
