package idempotency

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"storefront-api/internal/dto"
)

const defaultMaxEntries = 10000

// MemoryStore is a process-local cache bounded both by entry count and by age.
type MemoryStore struct {
	cache *expirable.LRU[string, *dto.CheckoutResponse]
}

func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, *dto.CheckoutResponse](maxEntries, nil, ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*dto.CheckoutResponse, bool, error) {
	resp, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return Clone(resp), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, resp *dto.CheckoutResponse) error {
	s.cache.Add(key, Clone(resp))
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
