package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"poolquote/internal/cache"
	"poolquote/internal/model"
)

const (
	DefaultQuoteTTL     = 30 * time.Second
	DefaultPoolStateTTL = 60 * time.Second
	DefaultTokenMetaTTL = time.Hour
)

// TTLs is the expiry policy per record kind.
type TTLs struct {
	Quote     time.Duration
	PoolState time.Duration
	TokenMeta time.Duration
}

// DefaultTTLs returns 30s quotes, 60s pool state and 1h token metadata.
func DefaultTTLs() TTLs {
	return TTLs{
		Quote:     DefaultQuoteTTL,
		PoolState: DefaultPoolStateTTL,
		TokenMeta: DefaultTokenMetaTTL,
	}
}

func (t TTLs) withDefaults() TTLs {
	d := DefaultTTLs()
	if t.Quote <= 0 {
		t.Quote = d.Quote
	}
	if t.PoolState <= 0 {
		t.PoolState = d.PoolState
	}
	if t.TokenMeta <= 0 {
		t.TokenMeta = d.TokenMeta
	}
	return t
}

// Fingerprint identifies a quote request. Direction matters: A→B and B→A
// are different fingerprints.
type Fingerprint struct {
	TokenIn  string
	TokenOut string
	AmountIn string
	Fee      uint32
}

// NewFingerprint lowercases addresses so checksum casing does not split entries.
func NewFingerprint(tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) Fingerprint {
	return Fingerprint{
		TokenIn:  strings.ToLower(strings.TrimSpace(tokenIn)),
		TokenOut: strings.ToLower(strings.TrimSpace(tokenOut)),
		AmountIn: model.FormatUint256(amountIn),
		Fee:      fee,
	}
}

func (f Fingerprint) Key() string {
	return fmt.Sprintf("quote:%s:%s:%s:%d", f.TokenIn, f.TokenOut, f.AmountIn, f.Fee)
}

func poolStateKey(poolID string) string {
	return "pool:" + strings.ToLower(poolID)
}

func tokenMetaKey(address string) string {
	return "token:" + strings.ToLower(strings.TrimSpace(address))
}

// QuoteCache stores JSON encoded records in a byte cache backend.
type QuoteCache struct {
	backend cache.Cache
	ttls    TTLs
}

func New(backend cache.Cache, ttls TTLs) *QuoteCache {
	if backend == nil {
		backend = cache.NewMemoryCache(0)
	}
	return &QuoteCache{backend: backend, ttls: ttls.withDefaults()}
}

func (c *QuoteCache) TTLs() TTLs {
	return c.ttls
}

// Get reports a miss as ok=false with a nil error.
func (c *QuoteCache) Get(ctx context.Context, fp Fingerprint) (model.Quote, bool, error) {
	var q model.Quote
	ok, err := c.get(ctx, fp.Key(), &q)
	return q, ok, err
}

// Set stores a quote. ttl <= 0 uses the configured quote ttl.
func (c *QuoteCache) Set(ctx context.Context, fp Fingerprint, q model.Quote, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttls.Quote
	}
	return c.set(ctx, fp.Key(), q, ttl)
}

func (c *QuoteCache) Invalidate(ctx context.Context, fp Fingerprint) error {
	return c.backend.Delete(ctx, fp.Key())
}

func (c *QuoteCache) GetPoolState(ctx context.Context, poolID string) (model.PoolState, bool, error) {
	var st model.PoolState
	ok, err := c.get(ctx, poolStateKey(poolID), &st)
	return st, ok, err
}

func (c *QuoteCache) SetPoolState(ctx context.Context, poolID string, st model.PoolState) error {
	return c.set(ctx, poolStateKey(poolID), st, c.ttls.PoolState)
}

func (c *QuoteCache) GetTokenMeta(ctx context.Context, address string) (model.TokenMeta, bool, error) {
	var meta model.TokenMeta
	ok, err := c.get(ctx, tokenMetaKey(address), &meta)
	return meta, ok, err
}

func (c *QuoteCache) SetTokenMeta(ctx context.Context, meta model.TokenMeta) error {
	return c.set(ctx, tokenMetaKey(meta.Address), meta, c.ttls.TokenMeta)
}

func (c *QuoteCache) Close() error {
	return c.backend.Close()
}

func (c *QuoteCache) get(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.backend.Delete(ctx, key)
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *QuoteCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
