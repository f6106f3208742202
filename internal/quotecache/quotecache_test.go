package quotecache

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"poolquote/internal/cache"
	"poolquote/internal/model"
)

const (
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T) (*QuoteCache, *clock) {
	t.Helper()
	clk := &clock{now: time.Unix(1700000000, 0)}
	qc := New(cache.NewMemoryCache(100, cache.WithClock(clk.Now)), TTLs{})
	t.Cleanup(func() { _ = qc.Close() })
	return qc, clk
}

func TestFingerprintKey(t *testing.T) {
	fp := NewFingerprint(usdc, weth, uint256.NewInt(1000), 3000)
	want := "quote:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2:1000:3000"
	if fp.Key() != want {
		t.Fatalf("key mismatch:\n got %s\nwant %s", fp.Key(), want)
	}

	reverse := NewFingerprint(weth, usdc, uint256.NewInt(1000), 3000)
	if reverse.Key() == fp.Key() {
		t.Fatalf("fingerprint must be direction sensitive")
	}
}

func TestDefaultTTLs(t *testing.T) {
	qc, _ := newTestCache(t)
	want := TTLs{Quote: 30 * time.Second, PoolState: 60 * time.Second, TokenMeta: 3600 * time.Second}
	if qc.TTLs() != want {
		t.Fatalf("ttl mismatch: %+v", qc.TTLs())
	}
}

func TestQuoteExpiresAfterTTL(t *testing.T) {
	qc, clk := newTestCache(t)
	ctx := context.Background()
	fp := NewFingerprint(usdc, weth, uint256.NewInt(1), 500)
	q := model.Quote{TokenIn: fp.TokenIn, TokenOut: fp.TokenOut, AmountIn: "1", AmountOut: "0", Fee: 500}

	if err := qc.Set(ctx, fp, q, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := qc.Get(ctx, fp)
	if err != nil || !ok {
		t.Fatalf("expected hit: %v %v", ok, err)
	}
	if !reflect.DeepEqual(got, q) {
		t.Fatalf("cached quote mismatch: %+v", got)
	}

	clk.Advance(30 * time.Second)
	if _, ok, err := qc.Get(ctx, fp); ok || err != nil {
		t.Fatalf("expected miss after 30s: %v %v", ok, err)
	}
}

func TestInvalidate(t *testing.T) {
	qc, _ := newTestCache(t)
	ctx := context.Background()
	fp := NewFingerprint(usdc, weth, uint256.NewInt(1), 500)
	_ = qc.Set(ctx, fp, model.Quote{}, time.Minute)
	if err := qc.Invalidate(ctx, fp); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := qc.Get(ctx, fp); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestPoolStateAndTokenMetaTTLs(t *testing.T) {
	qc, clk := newTestCache(t)
	ctx := context.Background()

	st := model.PoolState{Pool: model.ResolvedPool{PoolID: "0xABC"}, Liquidity: "10"}
	if err := qc.SetPoolState(ctx, "0xABC", st); err != nil {
		t.Fatalf("set pool state: %v", err)
	}
	meta := model.TokenMeta{Address: usdc, Decimals: 6, Symbol: "USDC", Name: "USD Coin"}
	if err := qc.SetTokenMeta(ctx, meta); err != nil {
		t.Fatalf("set token meta: %v", err)
	}

	clk.Advance(59 * time.Second)
	if _, ok, _ := qc.GetPoolState(ctx, "0xabc"); !ok {
		t.Fatalf("pool state should live 60s")
	}
	clk.Advance(time.Second)
	if _, ok, _ := qc.GetPoolState(ctx, "0xabc"); ok {
		t.Fatalf("pool state should expire at 60s")
	}

	got, ok, err := qc.GetTokenMeta(ctx, weth)
	if ok || err != nil {
		t.Fatalf("unexpected token meta for weth: %+v", got)
	}
	got, ok, err = qc.GetTokenMeta(ctx, usdc)
	if !ok || err != nil || got != meta {
		t.Fatalf("token meta should still be cached: %+v %v", got, err)
	}
	clk.Advance(time.Hour)
	if _, ok, _ := qc.GetTokenMeta(ctx, usdc); ok {
		t.Fatalf("token meta should expire after an hour")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	backend := cache.NewMemoryCache(10)
	qc := New(backend, TTLs{})
	defer qc.Close()
	ctx := context.Background()

	fp := NewFingerprint(usdc, weth, uint256.NewInt(1), 500)
	_ = backend.Set(ctx, fp.Key(), []byte("{not json"), time.Minute)
	if _, ok, err := qc.Get(ctx, fp); ok || err == nil {
		t.Fatalf("corrupt entry should be a miss with an error")
	}
	if _, err := backend.Get(ctx, fp.Key()); err == nil {
		t.Fatalf("corrupt entry should be dropped")
	}
}
