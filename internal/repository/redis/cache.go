package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// versionTTL outlives any matrix entry by far; an expired counter restarts
// at zero, which only matters to a load that spans the expiry.
const versionTTL = 48 * time.Hour

// setIfVersion stores the matrix only if no invalidation happened since the
// loader started. KEYS: matrix, version. ARGV: seen version, payload, ttl ms.
var setIfVersion = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or '0'
if cur ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// AvailabilityCache keeps the full-day slot matrix of a date as JSON. The
// matrix is independent of the hour it was computed at, so one entry serves
// every reader of the day until a write invalidates it.
//
// Every invalidation bumps a per-date version. A loader that read storage
// before a commit and finishes after its invalidation sees a newer version
// and skips the write, so a stale matrix is never cached.
type AvailabilityCache struct {
	rdb   *redis.Client
	group singleflight.Group
}

func NewAvailabilityCache(rdb *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb}
}

// LoadAvailability returns the cached matrix of date or computes it with
// loader. Concurrent misses of one date share a single loader call. A redis
// failure degrades to the loader instead of failing the read.
func (c *AvailabilityCache) LoadAvailability(
	ctx context.Context,
	date time.Time,
	ttl time.Duration,
	loader func(ctx context.Context) ([]domain.SlotAvailability, error),
) ([]domain.SlotAvailability, error) {
	const op = "redis.AvailabilityCache.LoadAvailability"

	key := KeyAvailability(date)

	if m, ok := c.read(ctx, key); ok {
		return m, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		verKey := KeyAvailabilityVersion(date)
		seen := c.version(ctx, verKey)

		if m, ok := c.read(ctx, key); ok {
			return m, nil
		}

		m, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(m); err == nil {
			_ = setIfVersion.Run(ctx, c.rdb, []string{key, verKey}, seen, b, ttl.Milliseconds()).Err()
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m, ok := v.([]domain.SlotAvailability)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected %T from loader", op, v)
	}

	return m, nil
}

// InvalidateAvailability drops the date's matrix and bumps its version.
func (c *AvailabilityCache) InvalidateAvailability(ctx context.Context, date time.Time) error {
	verKey := KeyAvailabilityVersion(date)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		pipe.Del(ctx, KeyAvailability(date))
		return nil
	})
	return err
}

// version returns the counter as stored, "0" when absent or unreadable.
func (c *AvailabilityCache) version(ctx context.Context, verKey string) string {
	v, err := c.rdb.Get(ctx, verKey).Result()
	if err != nil {
		return "0"
	}
	return v
}

// read reports a hit only for a present, decodable entry.
func (c *AvailabilityCache) read(ctx context.Context, key string) ([]domain.SlotAvailability, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; other errors fall through to the loader
		return nil, false
	}

	var m []domain.SlotAvailability
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}

	return m, true
}
