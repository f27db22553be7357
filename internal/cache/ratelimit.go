package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitAPIPrefix = "ratelimit:apikey:"
	rateLimitIPPrefix  = "ratelimit:ip:"

	rateLimitAPITTL = 2 * time.Minute
	rateLimitIPTTL  = 10 * time.Second
)

// Bucket is one token bucket: Burst tokens, refilled at Rate per second.
type Bucket struct {
	Key   string
	Rate  float64
	Burst int
	TTL   time.Duration
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket will be full again.
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded is set when Redis failed and the request was let through.
	Degraded bool
}

// takeTokenScript refills the bucket for the elapsed milliseconds, then
// takes one token if available. Returns allowed, retry_ms, remaining, reset_ms.
var takeTokenScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, ttl)

return {allowed, retry, math.floor(tokens), math.ceil((burst - tokens) / rate)}
`)

// APIBucket sizes the bucket for an API key from its tier's per-minute rate.
func APIBucket(keyID string, ratePerMinute, burst int) Bucket {
	return Bucket{
		Key:   rateLimitAPIPrefix + keyID,
		Rate:  float64(ratePerMinute) / 60,
		Burst: burst,
		TTL:   rateLimitAPITTL,
	}
}

// IPBucket sizes the bucket for a client address. The address is stored hashed.
func IPBucket(ip string, ratePerSecond, burst int) Bucket {
	return Bucket{
		Key:   rateLimitIPPrefix + hashIP(ip),
		Rate:  float64(ratePerSecond),
		Burst: burst,
		TTL:   rateLimitIPTTL,
	}
}

// CheckAPIRateLimit takes a token from the API key's bucket.
// A zero rate means the tier is unlimited.
func (c *Cache) CheckAPIRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute == 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}
	return c.Take(ctx, APIBucket(keyID, ratePerMinute, burst))
}

// CheckIPRateLimit takes a token from the client address's bucket.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.Take(ctx, IPBucket(ip, ratePerSecond, burst))
}

// Take atomically refills b and takes one token from it. Redis failures
// fail open with Degraded set rather than returning an error.
func (c *Cache) Take(ctx context.Context, b Bucket) (*RateLimitResult, error) {
	now := time.Now()
	if b.Rate <= 0 || b.Burst <= 0 {
		return &RateLimitResult{Allowed: true, ResetAt: now}, nil
	}

	ratePerMs := b.Rate / 1000
	vals, err := takeTokenScript.Run(ctx, c.client, []string{b.Key},
		ratePerMs, b.Burst, now.UnixMilli(), b.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil || len(vals) != 4 {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(b.Burst),
			ResetAt:   now,
			Degraded:  true,
		}, nil
	}

	return &RateLimitResult{
		Allowed:    vals[0] == 1,
		Remaining:  vals[2],
		ResetAt:    now.Add(time.Duration(vals[3]) * time.Millisecond),
		RetryAfter: time.Duration(vals[1]) * time.Millisecond,
	}, nil
}

// hashIP keeps raw client addresses out of Redis.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
