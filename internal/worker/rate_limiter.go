package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter provides atomic per-organization rate limiting for calls to
// the upstream order source, using a Redis Lua script. Parallel batches for
// the same org (the UI dispatches several at once) share a single budget, so
// the portal as a whole stays under the platform's per-second limit.
// GET → check → INCR patterns race under concurrency; the script does not.
type RateLimiter struct {
	redis *redis.Client

	perSecond   int
	limitScript *redis.Script
}

// DefaultOrdersPerSecond matches the Shopify Admin API's REST bucket leak
// rate for standard plans.
const DefaultOrdersPerSecond = 2

// Lua script for atomic check-and-increment on a one-second bucket.
const orderLimitLuaScript = `
local key = KEYS[1]
local increment = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")

if current + increment > limit then
    return {0, current}  -- denied
end

local newVal = redis.call("INCRBY", key, increment)
if newVal == increment then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}  -- allowed
`

// NewRateLimiter creates a rate limiter with a pre-compiled Lua script.
// perSecond <= 0 falls back to DefaultOrdersPerSecond.
func NewRateLimiter(redisClient *redis.Client, perSecond int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultOrdersPerSecond
	}
	return &RateLimiter{
		redis:       redisClient,
		perSecond:   perSecond,
		limitScript: redis.NewScript(orderLimitLuaScript),
	}
}

// NewRateLimiterFromURL creates a rate limiter by connecting to Redis.
func NewRateLimiterFromURL(redisURL string, perSecond int) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("[RateLimiter] Connected to Redis at %s", redisURL)

	return NewRateLimiter(client, perSecond), nil
}

// CheckAndIncrement atomically consumes one order-source call for the org.
// When denied, waitTime says how long until the current second's bucket rolls
// over.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, orgID string) (allowed bool, waitTime time.Duration, err error) {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:orders:%s:sec:%d", orgID, now.Unix())

	result, err := r.limitScript.Run(ctx, r.redis,
		[]string{key},
		1,
		r.perSecond,
		2, // TTL covers the current bucket plus clock skew
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if result[0].(int64) == 0 {
		remainder := time.Duration(now.UnixNano()%int64(time.Second)) * time.Nanosecond
		return false, time.Second - remainder, nil
	}
	return true, 0, nil
}

// Wait blocks until a call slot is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context, orgID string) error {
	for {
		allowed, waitTime, err := r.CheckAndIncrement(ctx, orgID)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Close closes the Redis connection.
func (r *RateLimiter) Close() error {
	return r.redis.Close()
}
