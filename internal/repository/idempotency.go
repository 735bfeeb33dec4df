package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore caches the final response of a mutating operation
// keyed by the caller-supplied idempotencyKey, so a resubmission within
// the TTL replays the recorded outcome instead of re-executing the
// trade.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type memIdemRecord struct {
	payload   []byte
	expiresAt time.Time
}

type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memIdemRecord
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]memIdemRecord)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(rec.expiresAt) {
		delete(s.records, key)
		return nil, false, nil
	}
	return rec.payload, true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// opportunistic cleanup keeps the map bounded without a sweeper
	now := time.Now()
	for k, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, k)
		}
	}
	s.records[key] = memIdemRecord{payload: payload, expiresAt: now.Add(ttl)}
	return nil
}

const idemKeyPrefix = "ostiumgate:idem:"

type RedisIdempotencyStore struct {
	client redis.UniversalClient
}

func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, idemKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idemKeyPrefix+key, payload, ttl).Err()
}
