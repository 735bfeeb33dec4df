package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ostiumgate:replay:"

// RedisStore implements Store on top of Redis so the replay window holds
// across gateway replicas. SET NX PX makes admit-and-record atomic on the
// server side; the TTL doubles as eviction.
type RedisStore struct {
	client    redis.UniversalClient
	window    time.Duration
	futureTol time.Duration
}

func NewRedisStore(client redis.UniversalClient, window, futureTol time.Duration) *RedisStore {
	if futureTol <= 0 || futureTol > window {
		futureTol = window
	}
	return &RedisStore{client: client, window: window, futureTol: futureTol}
}

func (s *RedisStore) Admit(ctx context.Context, signature string, timestamp, now time.Time) error {
	if err := CheckFreshness(timestamp, now, s.window, s.futureTol); err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, redisKeyPrefix+signature, timestamp.UnixMilli(), s.window).Result()
	if err != nil {
		return fmt.Errorf("replay store unavailable: %w", err)
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}
