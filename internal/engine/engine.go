package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"poolquote/internal/chain"
	"poolquote/internal/estimator"
	"poolquote/internal/feetier"
	"poolquote/internal/metrics"
	"poolquote/internal/model"
	"poolquote/internal/poolkey"
	"poolquote/internal/pricemath"
	"poolquote/internal/quotecache"
)

var (
	ErrInvalidAmount  = errors.New("amount in must be set")
	ErrNoStateReader  = errors.New("no pool state reader configured")
	ErrNoTokenReader  = errors.New("no token reader configured")
	quoteOutcomeLabel = map[string]error{
		"invalid_address":        poolkey.ErrInvalidAddress,
		"unknown_fee_tier":       feetier.ErrUnknownFeeTier,
		"rpc_unavailable":        chain.ErrRPCUnavailable,
		"pool_not_initialized":   estimator.ErrPoolNotInitialized,
		"insufficient_liquidity": estimator.ErrInsufficientLiquidity,
	}
)

// StateReader is the pool state source, normally chain.StateView.
type StateReader interface {
	Slot0(ctx context.Context, poolID common.Hash) (model.Slot0, error)
	Liquidity(ctx context.Context, poolID common.Hash) (*uint256.Int, error)
}

// TokenReader is the token metadata source, normally chain.TokenReader.
type TokenReader interface {
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

type Options struct {
	Registry *feetier.Registry
	Cache    *quotecache.QuoteCache
	State    StateReader
	Tokens   TokenReader
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// StrictFeeTiers rejects fees missing from the registry.
	StrictFeeTiers bool
	// AllowZeroLiquidity quotes empty pools with zero impact instead of failing.
	AllowZeroLiquidity bool
	// Singleflight collapses concurrent identical requests into one computation.
	Singleflight bool

	Now func() time.Time
}

// Engine resolves pools, converts prices and produces quotes.
type Engine struct {
	registry  *feetier.Registry
	codec     *poolkey.Codec
	estimator *estimator.Estimator
	cache     *quotecache.QuoteCache
	state     StateReader
	tokens    TokenReader
	logger    *zap.Logger
	metrics   *metrics.Metrics

	strict       bool
	singleflight bool
	group        singleflight.Group
	now          func() time.Time
}

func New(opts Options) *Engine {
	registry := opts.Registry
	if registry == nil {
		registry = feetier.Default()
	}
	qc := opts.Cache
	if qc == nil {
		qc = quotecache.New(nil, quotecache.DefaultTTLs())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		registry:     registry,
		codec:        poolkey.NewCodec(registry),
		estimator:    estimator.New(estimator.WithZeroLiquidityQuotes(opts.AllowZeroLiquidity)),
		cache:        qc,
		state:        opts.State,
		tokens:       opts.Tokens,
		logger:       logger,
		metrics:      opts.Metrics,
		strict:       opts.StrictFeeTiers,
		singleflight: opts.Singleflight,
		now:          now,
	}
}

// Close releases the cache backend.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// ResolvePool builds the canonical key and id. It never touches the network.
func (e *Engine) ResolvePool(tokenA, tokenB string, fee uint32, opts ...poolkey.Option) (model.ResolvedPool, error) {
	resolved, err := e.resolve(tokenA, tokenB, fee, opts...)
	if err != nil {
		return model.ResolvedPool{}, err
	}
	return toResolvedPool(resolved), nil
}

func (e *Engine) resolve(tokenA, tokenB string, fee uint32, opts ...poolkey.Option) (poolkey.Resolved, error) {
	resolved, err := e.codec.Resolve(tokenA, tokenB, fee, opts...)
	if err != nil {
		return poolkey.Resolved{}, err
	}
	if !resolved.KnownFee {
		if e.strict {
			return poolkey.Resolved{}, fmt.Errorf("%w: %d", feetier.ErrUnknownFeeTier, fee)
		}
		e.logger.Warn("unknown fee tier, using default tick spacing",
			zap.Uint32("fee", fee),
			zap.Int32("tick_spacing", resolved.Key.TickSpacing),
		)
	}
	return resolved, nil
}

// ConvertSqrtPrice returns the raw token1/token0 price.
func (e *Engine) ConvertSqrtPrice(sqrtPriceX96 *big.Int) float64 {
	return pricemath.SqrtPriceX96ToPrice(sqrtPriceX96)
}

// ConvertPrice returns floor(sqrt(price) * 2^96).
func (e *Engine) ConvertPrice(price float64) (*big.Int, error) {
	return pricemath.PriceToSqrtPriceX96(price)
}

// Quote estimates a swap of amountIn tokenIn for tokenOut. Identical requests
// within the quote ttl are served from cache without RPC reads.
func (e *Engine) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) (model.Quote, error) {
	q, _, err := e.QuoteWithSource(ctx, tokenIn, tokenOut, amountIn, fee)
	return q, err
}

// QuoteWithSource is Quote that also reports whether the cache answered.
func (e *Engine) QuoteWithSource(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) (q model.Quote, cached bool, err error) {
	start := e.now()
	defer func() {
		e.metrics.ObserveQuote(e.now().Sub(start), metrics.Outcome(err, quoteOutcomeLabel))
	}()

	if amountIn == nil {
		return model.Quote{}, false, ErrInvalidAmount
	}
	resolved, err := e.resolve(tokenIn, tokenOut, fee)
	if err != nil {
		return model.Quote{}, false, err
	}
	if e.state == nil {
		return model.Quote{}, false, ErrNoStateReader
	}

	fp := quotecache.NewFingerprint(tokenIn, tokenOut, amountIn, fee)
	if hit, ok := e.cachedQuote(ctx, fp); ok {
		return hit, true, nil
	}

	compute := func() (interface{}, error) {
		return e.computeQuote(ctx, fp, resolved, tokenIn, tokenOut, amountIn, fee)
	}
	if !e.singleflight {
		v, err := compute()
		if err != nil {
			return model.Quote{}, false, err
		}
		return v.(model.Quote), false, nil
	}

	v, err, shared := e.group.Do(fp.Key(), compute)
	if err != nil {
		return model.Quote{}, false, err
	}
	if shared {
		e.logger.Debug("quote shared with in-flight request", zap.String("fingerprint", fp.Key()))
	}
	return v.(model.Quote), false, nil
}

// InvalidateQuote drops a cached quote so the next request reads fresh state.
func (e *Engine) InvalidateQuote(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) error {
	return e.cache.Invalidate(ctx, quotecache.NewFingerprint(tokenIn, tokenOut, amountIn, fee))
}

func (e *Engine) cachedQuote(ctx context.Context, fp quotecache.Fingerprint) (model.Quote, bool) {
	q, ok, err := e.cache.Get(ctx, fp)
	if err != nil {
		e.logger.Warn("quote cache read failed", zap.String("fingerprint", fp.Key()), zap.Error(err))
	}
	e.metrics.CacheLookup("quote", ok)
	return q, ok
}

func (e *Engine) computeQuote(ctx context.Context, fp quotecache.Fingerprint, resolved poolkey.Resolved, tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) (model.Quote, error) {
	slot0, liquidity, err := e.readPool(ctx, resolved.ID)
	if err != nil {
		return model.Quote{}, err
	}

	q, err := e.estimator.Estimate(estimator.Input{
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		Fee:            fee,
		Slot0:          slot0,
		Liquidity:      liquidity,
		Key:            resolved.Key,
		PoolID:         resolved.ID,
		UnknownFeeTier: !resolved.KnownFee,
	})
	if err != nil {
		return model.Quote{}, err
	}

	if err := e.cache.Set(ctx, fp, q, 0); err != nil {
		e.logger.Warn("quote cache write failed", zap.String("fingerprint", fp.Key()), zap.Error(err))
	}
	e.logger.Debug("quote computed",
		zap.String("pool_id", q.PoolID),
		zap.String("token_in", q.TokenIn),
		zap.String("amount_in", q.AmountIn),
		zap.String("amount_out", q.AmountOut),
		zap.Float64("price_impact_pct", q.PriceImpactPct),
	)
	return q, nil
}

// readPool issues both state reads concurrently under one context.
func (e *Engine) readPool(ctx context.Context, poolID common.Hash) (model.Slot0, *uint256.Int, error) {
	var (
		slot0     model.Slot0
		liquidity *uint256.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.state.Slot0(gctx, poolID)
		if err != nil {
			return fmt.Errorf("read slot0 %s: %w", poolID.Hex(), err)
		}
		slot0 = s
		return nil
	})
	g.Go(func() error {
		l, err := e.state.Liquidity(gctx, poolID)
		if err != nil {
			return fmt.Errorf("read liquidity %s: %w", poolID.Hex(), err)
		}
		liquidity = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Slot0{}, nil, err
	}
	return slot0, liquidity, nil
}

// PoolState returns slot0 and liquidity, cached for the pool state ttl.
func (e *Engine) PoolState(ctx context.Context, tokenA, tokenB string, fee uint32, opts ...poolkey.Option) (model.PoolState, error) {
	resolved, err := e.resolve(tokenA, tokenB, fee, opts...)
	if err != nil {
		return model.PoolState{}, err
	}
	if e.state == nil {
		return model.PoolState{}, ErrNoStateReader
	}
	poolID := resolved.ID.Hex()

	st, ok, err := e.cache.GetPoolState(ctx, poolID)
	if err != nil {
		e.logger.Warn("pool state cache read failed", zap.String("pool_id", poolID), zap.Error(err))
	}
	e.metrics.CacheLookup("pool_state", ok)
	if ok {
		return st, nil
	}

	v, err, _ := e.group.Do("pool:"+poolID, func() (interface{}, error) {
		slot0, liquidity, err := e.readPool(ctx, resolved.ID)
		if err != nil {
			return model.PoolState{}, err
		}
		st := model.PoolState{
			Pool:      toResolvedPool(resolved),
			Slot0:     slot0,
			Liquidity: model.FormatUint256(liquidity),
			Price:     pricemath.SqrtPriceX96ToPrice(slot0.SqrtPriceBig()),
			FetchedAt: e.now().UTC().Format(time.RFC3339),
		}
		if err := e.cache.SetPoolState(ctx, poolID, st); err != nil {
			e.logger.Warn("pool state cache write failed", zap.String("pool_id", poolID), zap.Error(err))
		}
		return st, nil
	})
	if err != nil {
		return model.PoolState{}, err
	}
	return v.(model.PoolState), nil
}

// TokenMeta returns ERC20 metadata, cached for the token metadata ttl.
func (e *Engine) TokenMeta(ctx context.Context, token string) (model.TokenMeta, error) {
	addr, err := poolkey.ParseAddress(token)
	if err != nil {
		return model.TokenMeta{}, err
	}
	if e.tokens == nil {
		return model.TokenMeta{}, ErrNoTokenReader
	}

	meta, ok, err := e.cache.GetTokenMeta(ctx, addr.Hex())
	if err != nil {
		e.logger.Warn("token meta cache read failed", zap.String("token", addr.Hex()), zap.Error(err))
	}
	e.metrics.CacheLookup("token_meta", ok)
	if ok {
		return meta, nil
	}

	meta, err = e.tokens.TokenMeta(ctx, addr)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token meta %s: %w", addr.Hex(), err)
	}
	meta.Address = addr.Hex()
	if err := e.cache.SetTokenMeta(ctx, meta); err != nil {
		e.logger.Warn("token meta cache write failed", zap.String("token", addr.Hex()), zap.Error(err))
	}
	return meta, nil
}

func toResolvedPool(r poolkey.Resolved) model.ResolvedPool {
	return model.ResolvedPool{
		PoolID:       r.ID.Hex(),
		Currency0:    r.Key.Currency0.Hex(),
		Currency1:    r.Key.Currency1.Hex(),
		Fee:          r.Key.Fee,
		TickSpacing:  r.Key.TickSpacing,
		Hooks:        r.Key.Hooks.Hex(),
		KnownFeeTier: r.KnownFee,
	}
}
