package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.New("cache: key not found")

// Cache stores opaque values with a per-entry TTL. Callers own serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
