package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultMaxSize         = 1000
	defaultCleanupInterval = time.Minute
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an LRU bounded cache with lazy and periodic expiry.
type MemoryCache struct {
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
	mu      sync.Mutex
	now     func() time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

func NewMemoryCache(maxSize int, opts ...MemoryOption) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	c := &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.janitor(defaultCleanupInterval)
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		return nil, ErrNotFound
	}
	c.lru.MoveToFront(el)
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value. A non-positive ttl deletes the key.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		if el, ok := c.items[key]; ok {
			c.removeElement(el)
		}
		return nil
	}

	expiresAt := c.now().Add(ttl)
	value = append([]byte(nil), value...)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return nil
	}

	c.items[key] = c.lru.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	for c.lru.Len() > c.maxSize {
		c.removeElement(c.lru.Back())
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// Close stops the janitor. Safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// caller holds mu
func (c *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	c.lru.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeElement(el)
		}
		el = prev
	}
}
