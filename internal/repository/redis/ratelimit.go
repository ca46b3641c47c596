package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

// slidingWindow admits a request when fewer than limit requests were seen in
// the last window. Time comes from the redis server so that instances with
// skewed clocks share one window.
//
// KEYS[1] sorted set of request timestamps (ms)
// ARGV[1] window in ms, ARGV[2] limit, ARGV[3] unique member
//
// Returns {allowed, count, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local t = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local wait = window
  if oldest[2] then
    wait = tonumber(oldest[2]) + window - now
  end
  return {0, count, math.max(wait, 0)}
end

redis.call('ZADD', KEYS[1], now, ARGV[3])
redis.call('PEXPIRE', KEYS[1], window)
return {1, count + 1, 0}
`)

// SlidingWindowLimiter is a ratelimit.Limiter shared by every instance.
// Rejected requests are not recorded, so a client that backs off regains
// capacity as soon as its oldest admitted request leaves the window.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
}

func NewSlidingWindowLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &SlidingWindowLimiter{rdb: rdb, scope: scope, limit: limit, window: window}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	const op = "redis.SlidingWindowLimiter.Allow"

	res, err := slidingWindow.Run(ctx, l.rdb,
		[]string{KeyRateLimit(l.scope, key)},
		l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(res) != 3 {
		return ratelimit.Decision{}, fmt.Errorf("%s: unexpected script reply %v", op, res)
	}

	return ratelimit.Decision{
		Allowed:    res[0] == 1,
		Current:    res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
