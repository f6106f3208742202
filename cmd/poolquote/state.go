package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"poolquote/internal/config"
	"poolquote/internal/metrics"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read slot0 and liquidity for a pool",
		RunE:  runState,
	}
	cmd.Flags().String("token-a", "", "first token address")
	cmd.Flags().String("token-b", "", "second token address")
	cmd.Flags().Uint32("fee", 3000, "fee in hundredths of a bip")
	cmd.Flags().Int32("tick-spacing", 0, "tick spacing override, 0 uses the fee tier table")
	cmd.Flags().String("hooks", "", "hook contract address")
	addEngineFlags(cmd)
	return cmd
}

func runState(cmd *cobra.Command, _ []string) error {
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

	if cfg.TokenA == "" || cfg.TokenB == "" {
		return fmt.Errorf("token-a and token-b are required")
	}
	pair := pairSpec{
		TokenA:      cfg.TokenA,
		TokenB:      cfg.TokenB,
		Fee:         cfg.Fee,
		TickSpacing: cfg.TickSpacing,
		Hooks:       cfg.Hooks,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, cfg.EngineConfig, logger, metrics.New())
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := eng.PoolState(ctx, pair.TokenA, pair.TokenB, pair.Fee, pair.options()...)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), st)
}
