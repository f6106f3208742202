package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolquote/internal/model"
	"poolquote/internal/storage"
)

// Quoter is the part of the engine the runner needs.
type Quoter interface {
	QuoteWithSource(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int, fee uint32) (model.Quote, bool, error)
}

// RunConfig holds runtime settings for the watch loop.
type RunConfig struct {
	ChainID    uint64
	Requests   []Request
	Interval   time.Duration
	Iterations int
}

// Runner re-quotes a fixed request list on an interval and journals the results.
type Runner struct {
	cfg     RunConfig
	quoter  Quoter
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner builds a Runner with its dependencies. storageSink may be nil.
func NewRunner(cfg RunConfig, quoter Quoter, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		quoter:  quoter,
		storage: storageSink,
		logger:  logger,
		now:     time.Now,
	}
}

// Run polls until ctx is done or the iteration limit is reached.
// A cancelled context ends the loop without error.
func (r *Runner) Run(ctx context.Context) error {
	if r.quoter == nil {
		return fmt.Errorf("quoter is nil")
	}
	if len(r.cfg.Requests) == 0 {
		return fmt.Errorf("at least one quote is required")
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		if err := r.tick(ctx, round); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if r.cfg.Iterations > 0 && round >= r.cfg.Iterations {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) tick(ctx context.Context, round int) error {
	observedAt := r.now().UTC().Format(time.RFC3339)
	records := make([]model.QuoteRecord, 0, len(r.cfg.Requests))
	failed := 0

	for _, req := range r.cfg.Requests {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, cached, err := r.quoter.QuoteWithSource(ctx, req.TokenIn, req.TokenOut, req.AmountIn, req.Fee)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			r.logger.Warn("quote failed", zap.String("quote", req.String()), zap.Error(err))
			continue
		}
		records = append(records, model.QuoteRecord{
			ChainID:    r.cfg.ChainID,
			ObservedAt: observedAt,
			Cached:     cached,
			Quote:      q,
		})
		r.logger.Debug("quote",
			zap.String("pool_id", q.PoolID),
			zap.String("amount_in", q.AmountIn),
			zap.String("amount_out", q.AmountOut),
			zap.Bool("cached", cached),
		)
	}

	if r.storage != nil && len(records) > 0 {
		if err := r.storage.PutQuotes(ctx, records); err != nil {
			return fmt.Errorf("store quotes: %w", err)
		}
	}

	r.logger.Info("round complete", zap.Int("round", round), zap.Int("quotes", len(records)), zap.Int("failed", failed))
	return nil
}
