package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyStore implements ports.IdempotencyStore. Keys arrive fully qualified
// by the guard, so no prefix is added here.
type IdempotencyStore struct {
	client goredis.UniversalClient
}

// NewIdempotencyStore creates a new Redis-backed idempotency store.
func NewIdempotencyStore(client goredis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Claim writes rec with SET NX, so exactly one concurrent caller wins the key.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, rec domain.IdempotencyRecord, ttl time.Duration) (bool, error) {
	val, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency claim: %w", err)
	}
	return ok, nil
}

// Get returns nil, nil if the key does not exist.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Attach replaces the record of a live key and keeps its remaining TTL. A key that
// already expired stays gone.
func (s *IdempotencyStore) Attach(ctx context.Context, key string, rec domain.IdempotencyRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	err = s.client.SetArgs(ctx, key, val, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis idempotency attach: %w", err)
	}
	return nil
}

// Exists reports whether any of keys is present.
func (s *IdempotencyStore) Exists(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	n, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency exists: %w", err)
	}
	return n > 0, nil
}

func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis idempotency delete: %w", err)
	}
	return nil
}
