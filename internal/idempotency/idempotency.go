// Package idempotency remembers successful checkout responses by the
// client-supplied Idempotency-Key so retried requests replay instead of
// placing a second order.
package idempotency

import (
	"context"

	"storefront-api/internal/dto"
)

const Header = "Idempotency-Key"

// Store caches successful checkout responses. Only successes are stored;
// a failed attempt under a key leaves the key free for a fresh attempt.
type Store interface {
	// Get reports whether key has a cached response and returns it.
	Get(ctx context.Context, key string) (*dto.CheckoutResponse, bool, error)
	Put(ctx context.Context, key string, resp *dto.CheckoutResponse) error
}

// Clone copies resp so callers cannot alias a cached value.
func Clone(resp *dto.CheckoutResponse) *dto.CheckoutResponse {
	if resp == nil {
		return nil
	}
	out := *resp
	out.Items = append([]dto.CheckoutItem(nil), resp.Items...)
	return &out
}
