package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// A key holds idemPending while its request runs, then idemDone followed by
// the JSON response.
const (
	idemPending = "pending"
	idemDone    = "done:"
)

// abortPending drops the claim only if no response was stored meanwhile.
var abortPending = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyStore lets a retried POST replay its first response instead of
// creating a second resource.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Begin claims key for lockTTL. It returns started=true when the caller owns
// the key, or the stored payload when an earlier request already finished.
// started=false with an empty payload means the key is still in flight.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (string, bool, error) {
	const op = "redis.IdempotencyStore.Begin"

	claimed, err := s.rdb.SetNX(ctx, key, idemPending, lockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if claimed {
		return "", true, nil
	}

	v, err := s.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between the two calls; the client may retry
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	if payload, ok := strings.CutPrefix(v, idemDone); ok {
		return payload, false, nil
	}
	return "", false, nil
}

// Finish stores the response under key for the store's TTL.
func (s *IdempotencyStore) Finish(ctx context.Context, key, payload string) error {
	return s.rdb.Set(ctx, key, idemDone+payload, s.ttl).Err()
}

// Abort releases a claim whose request failed, so a retry runs again.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	return abortPending.Run(ctx, s.rdb, []string{key}, idemPending).Err()
}
