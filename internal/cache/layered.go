package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultL1TTL caps how long the memory tier holds an entry.
const DefaultL1TTL = time.Minute

// LayeredCache reads L1 then L2 and writes through to both.
type LayeredCache struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration
}

func NewLayeredCache(l1, l2 Cache, l1TTL time.Duration) *LayeredCache {
	if l1TTL <= 0 {
		l1TTL = DefaultL1TTL
	}
	return &LayeredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if lc.l1 != nil {
		if val, err := lc.l1.Get(ctx, key); err == nil {
			return val, nil
		}
	}
	if lc.l2 == nil {
		return nil, ErrNotFound
	}

	val, err := lc.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if lc.l1 != nil {
		// L2 does not expose the remaining ttl, so backfill with the cap.
		_ = lc.l1.Set(ctx, key, val, lc.l1TTL)
	}
	return val, nil
}

// Set fails only when every configured tier fails.
func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var l1Err, l2Err error
	if lc.l1 != nil {
		l1Err = lc.l1.Set(ctx, key, value, minDuration(ttl, lc.l1TTL))
	}
	if lc.l2 != nil {
		l2Err = lc.l2.Set(ctx, key, value, ttl)
	}
	switch {
	case lc.l2 == nil:
		return l1Err
	case lc.l1 == nil:
		return l2Err
	case l1Err != nil && l2Err != nil:
		return l2Err
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	if lc.l1 != nil {
		errs = append(errs, lc.l1.Delete(ctx, key))
	}
	if lc.l2 != nil {
		errs = append(errs, lc.l2.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

func (lc *LayeredCache) Close() error {
	var errs []error
	if lc.l1 != nil {
		errs = append(errs, lc.l1.Close())
	}
	if lc.l2 != nil {
		errs = append(errs, lc.l2.Close())
	}
	return errors.Join(errs...)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
