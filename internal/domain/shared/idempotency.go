package shared

import (
	"context"
	"time"
)

// IdempotencyStore deduplicates externally-triggered operations.
// Receipt intake uses it so that a re-delivered upload (the messenger
// retries photo webhooks) creates exactly one receipt and payment.
type IdempotencyStore interface {
	// MarkProcessed claims a key with a TTL.
	// Returns true if the key was newly claimed, false if it was
	// already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}
