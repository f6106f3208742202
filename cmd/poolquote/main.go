package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolquote/internal/cache"
	"poolquote/internal/chain"
	"poolquote/internal/config"
	"poolquote/internal/engine"
	"poolquote/internal/feetier"
	"poolquote/internal/metrics"
	"poolquote/internal/quotecache"
)

func main() {
	root := &cobra.Command{
		Use:          "poolquote",
		Short:        "Uniswap v4 pool identification and quote engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newResolveCmd())
	root.AddCommand(newPriceCmd())
	root.AddCommand(newQuoteCmd())
	root.AddCommand(newStateCmd())
	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addEngineFlags registers the flags shared by commands that build an engine.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("state-view", config.DefaultStateView, "v4 StateView contract address")
	cmd.Flags().Uint64("chain-id", 1, "chain id recorded on outputs")
	cmd.Flags().Duration("quote-ttl", 30*time.Second, "quote cache ttl")
	cmd.Flags().Duration("pool-state-ttl", 60*time.Second, "pool state cache ttl")
	cmd.Flags().Duration("token-meta-ttl", time.Hour, "token metadata cache ttl")
	cmd.Flags().String("cache-backend", config.CacheMemory, "cache backend (memory, redis, layered)")
	cmd.Flags().Int("cache-size", 10000, "in-memory cache entries")
	cmd.Flags().String("redis-addr", "localhost:6379", "redis address")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-db", 0, "redis database")
	cmd.Flags().Bool("singleflight", true, "collapse concurrent identical quotes")
	cmd.Flags().Bool("strict-fee-tiers", false, "reject fees without a known tick spacing")
	cmd.Flags().Bool("allow-zero-liquidity", false, "quote empty pools with zero price impact")
	cmd.Flags().Duration("rpc-timeout", 10*time.Second, "per-call RPC timeout")
	cmd.Flags().Int("rpc-max-retries", 2, "maximum RPC retry attempts")
	cmd.Flags().Duration("rpc-retry-backoff", 200*time.Millisecond, "initial RPC retry backoff")
	addLogFlag(cmd)
}

func addLogFlag(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// buildEngine wires the chain adapter, cache backend and metrics into an engine.
// The returned cleanup closes everything that was opened.
func buildEngine(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger, m *metrics.Metrics) (*engine.Engine, func(), error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}
	registry, err := feetier.New(cfg.FeeTiers)
	if err != nil {
		return nil, nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	if chainID, err := client.GetChainID(ctx); err != nil {
		logger.Warn("get chain id", zap.Error(err))
	} else if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
		logger.Warn("rpc chain id differs from configured chain id",
			zap.String("rpc_chain_id", chainID.String()),
			zap.Uint64("chain_id", cfg.ChainID),
		)
	}

	callOpts := chain.CallOptions{
		Timeout:      cfg.RPCTimeout,
		MaxRetries:   cfg.RPCMaxRetries,
		RetryBackoff: cfg.RPCRetryBackoff,
		Logger:       logger,
		Observe:      m.ObserveRPC,
	}
	stateView, err := chain.NewStateView(client, common.HexToAddress(cfg.StateView), callOpts)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	tokens, err := chain.NewTokenReader(client, callOpts)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	backend, err := newCacheBackend(ctx, cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	eng := engine.New(engine.Options{
		Registry: registry,
		Cache: quotecache.New(backend, quotecache.TTLs{
			Quote:     cfg.QuoteTTL,
			PoolState: cfg.PoolStateTTL,
			TokenMeta: cfg.TokenMetaTTL,
		}),
		State:              stateView,
		Tokens:             tokens,
		Logger:             logger,
		Metrics:            m,
		StrictFeeTiers:     cfg.StrictFeeTiers,
		AllowZeroLiquidity: cfg.AllowZeroLiquidity,
		Singleflight:       cfg.Singleflight,
	})

	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("close cache", zap.Error(err))
		}
		client.Close()
	}
	return eng, cleanup, nil
}

func newCacheBackend(ctx context.Context, cfg config.EngineConfig) (cache.Cache, error) {
	redisCfg := cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "poolquote:",
	}
	switch cfg.CacheBackend {
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, redisCfg)
	case config.CacheLayered:
		l2, err := cache.NewRedisCache(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		return cache.NewLayeredCache(cache.NewMemoryCache(cfg.CacheSize), l2, cache.DefaultL1TTL), nil
	default:
		return cache.NewMemoryCache(cfg.CacheSize), nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
