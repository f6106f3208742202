package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolquote/internal/config"
	"poolquote/internal/engine"
	"poolquote/internal/feetier"
	"poolquote/internal/model"
	"poolquote/internal/poolkey"
	"poolquote/internal/storage"
	"poolquote/internal/storage/postgres"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Build canonical pool keys and pool ids",
		RunE:  runResolve,
	}
	cmd.Flags().String("token-a", "", "first token address")
	cmd.Flags().String("token-b", "", "second token address")
	cmd.Flags().Uint32("fee", 3000, "fee in hundredths of a bip")
	cmd.Flags().Int32("tick-spacing", 0, "tick spacing override, 0 uses the fee tier table")
	cmd.Flags().String("hooks", "", "hook contract address")
	cmd.Flags().String("pairs", "", "file of pools, one per line (tokenA,tokenB,fee[,tickSpacing[,hooks]] or a JSON key)")
	cmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces --out when set")
	cmd.Flags().Uint64("chain-id", 1, "chain id recorded on outputs")
	cmd.Flags().Bool("strict-fee-tiers", false, "reject fees without a known tick spacing")
	addLogFlag(cmd)
	return cmd
}

// pairSpec is one pool to resolve.
type pairSpec struct {
	TokenA      string
	TokenB      string
	Fee         uint32
	TickSpacing int32
	Hooks       string
}

func (p pairSpec) options() []poolkey.Option {
	var opts []poolkey.Option
	if p.TickSpacing != 0 {
		opts = append(opts, poolkey.WithTickSpacing(p.TickSpacing))
	}
	if p.Hooks != "" {
		opts = append(opts, poolkey.WithHooks(p.Hooks))
	}
	return opts
}

func runResolve(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadResolve(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var pairs []pairSpec
	if cfg.Pairs != "" {
		f, err := os.Open(cfg.Pairs)
		if err != nil {
			return fmt.Errorf("open pairs: %w", err)
		}
		pairs, err = readPairs(f)
		f.Close()
		if err != nil {
			return err
		}
	} else {
		if cfg.TokenA == "" || cfg.TokenB == "" {
			return fmt.Errorf("token-a and token-b are required without --pairs")
		}
		pairs = []pairSpec{{
			TokenA:      cfg.TokenA,
			TokenB:      cfg.TokenB,
			Fee:         cfg.Fee,
			TickSpacing: cfg.TickSpacing,
			Hooks:       cfg.Hooks,
		}}
	}

	registry, err := feetier.New(cfg.FeeTiers)
	if err != nil {
		return err
	}
	eng := engine.New(engine.Options{
		Registry:       registry,
		Logger:         logger,
		StrictFeeTiers: cfg.StrictFeeTiers,
	})
	defer eng.Close()

	pools := make([]model.Pool, 0, len(pairs))
	for _, pair := range pairs {
		resolved, err := eng.ResolvePool(pair.TokenA, pair.TokenB, pair.Fee, pair.options()...)
		if err != nil {
			return fmt.Errorf("resolve %s/%s fee %d: %w", pair.TokenA, pair.TokenB, pair.Fee, err)
		}
		pools = append(pools, model.Pool{ChainID: cfg.ChainID, ResolvedPool: resolved})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := openSink(ctx, cfg.Out, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.PutPools(ctx, pools); err != nil {
		return fmt.Errorf("store pools: %w", err)
	}
	logger.Info("resolve complete", zap.Int("pools", len(pools)), zap.Uint64("chain_id", cfg.ChainID))
	return nil
}

// openSink prefers Postgres when a DSN is configured.
func openSink(ctx context.Context, out, dsn string) (storage.Storage, error) {
	if dsn == "" {
		return storage.NewJsonlStorage(out), nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// readPairs parses one pool per line. Blank lines and # comments are skipped.
func readPairs(r io.Reader) ([]pairSpec, error) {
	var pairs []pairSpec
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pair, err := parsePairLine(line)
		if err != nil {
			return nil, fmt.Errorf("pairs line %d: %w", lineNo, err)
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}
	return pairs, nil
}

func parsePairLine(line string) (pairSpec, error) {
	if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "{") {
		key, err := poolkey.DecodeKey([]byte(line))
		if err != nil {
			return pairSpec{}, err
		}
		return pairSpec{
			TokenA:      key.Currency0.Hex(),
			TokenB:      key.Currency1.Hex(),
			Fee:         key.Fee,
			TickSpacing: key.TickSpacing,
			Hooks:       key.Hooks.Hex(),
		}, nil
	}

	fields := strings.Split(line, ",")
	if len(fields) < 3 || len(fields) > 5 {
		return pairSpec{}, fmt.Errorf("want tokenA,tokenB,fee[,tickSpacing[,hooks]], got %q", line)
	}
	fee, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return pairSpec{}, fmt.Errorf("fee: %w", err)
	}
	pair := pairSpec{
		TokenA: strings.TrimSpace(fields[0]),
		TokenB: strings.TrimSpace(fields[1]),
		Fee:    uint32(fee),
	}
	if len(fields) >= 4 && strings.TrimSpace(fields[3]) != "" {
		spacing, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 32)
		if err != nil {
			return pairSpec{}, fmt.Errorf("tick spacing: %w", err)
		}
		pair.TickSpacing = int32(spacing)
	}
	if len(fields) == 5 {
		pair.Hooks = strings.TrimSpace(fields[4])
	}
	return pair, nil
}
