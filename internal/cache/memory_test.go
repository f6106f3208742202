package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(10, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(29 * time.Second)
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected hit before ttl, got %q %v", got, err)
	}

	clock.Advance(time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at ttl, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed on read")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("get a: %v", err)
	}
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("b should have been evicted, got %v", err)
	}
	for _, key := range []string{"a", "c"} {
		if _, err := c.Get(ctx, key); err != nil {
			t.Fatalf("%s should survive: %v", key, err)
		}
	}
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, _ := c.Get(ctx, "k")
	got[1] = 'y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache must not alias caller buffers, got %q", again)
	}
}

func TestMemoryCacheDeleteAndZeroTTL(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss after delete, got %v", err)
	}

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("zero ttl should drop the key, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryCachePurgeExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(10, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Second)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	clock.Advance(time.Minute)
	c.purgeExpired()

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after purge, got %d", c.Len())
	}
}
