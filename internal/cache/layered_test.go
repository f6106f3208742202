package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("down") }
func (failingCache) Close() error                         { return nil }

func TestLayeredCacheBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache(10)
	l2 := NewMemoryCache(10)
	lc := NewLayeredCache(l1, l2, 0)
	defer lc.Close()

	_ = l2.Set(ctx, "k", []byte("v"), time.Hour)
	got, err := lc.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected l2 hit, got %q %v", got, err)
	}
	if _, err := l1.Get(ctx, "k"); err != nil {
		t.Fatalf("l1 should be backfilled: %v", err)
	}
}

func TestLayeredCacheCapsL1TTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l1 := NewMemoryCache(10, WithClock(clock.Now))
	l2 := NewMemoryCache(10, WithClock(clock.Now))
	lc := NewLayeredCache(l1, l2, 10*time.Second)
	defer lc.Close()

	if err := lc.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(11 * time.Second)
	if _, err := l1.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("l1 entry should expire at the cap, got %v", err)
	}
	if _, err := lc.Get(ctx, "k"); err != nil {
		t.Fatalf("l2 should still serve: %v", err)
	}
}

func TestLayeredCacheToleratesOneTier(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(NewMemoryCache(10), failingCache{}, 0)
	defer lc.Close()

	if err := lc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set should succeed with one healthy tier: %v", err)
	}
	if got, err := lc.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("expected l1 hit, got %q %v", got, err)
	}
	if err := lc.Delete(ctx, "k"); err == nil {
		t.Fatalf("delete should report the failing tier")
	}
}
