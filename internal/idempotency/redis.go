package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-api/internal/dto"
)

const redisKeyPrefix = "idempotency:checkout:"

// RedisStore shares cached responses between API replicas. Entries expire
// after ttl; the first writer for a key wins.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (*dto.CheckoutResponse, bool, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get idempotency record: %w", err)
	}

	var resp dto.CheckoutResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, resp *dto.CheckoutResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.client.SetNX(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set idempotency record: %w", err)
	}
	return nil
}
