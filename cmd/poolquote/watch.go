package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolquote/internal/config"
	"poolquote/internal/metrics"
	"poolquote/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-quote a list of swaps on an interval",
		RunE:  runWatch,
	}
	cmd.Flags().StringSlice("quote", nil, "quotes as tokenIn:tokenOut:amount:fee (repeatable)")
	cmd.Flags().Duration("interval", 15*time.Second, "polling interval")
	cmd.Flags().Int("iterations", 0, "stop after this many rounds, 0 runs until interrupted")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().String("out", "", "quote journal JSONL path, - for stdout")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the quote journal")
	addEngineFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	requests, err := watch.ParseRequests(cfg.Quotes)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("at least one --quote is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	eng, cleanup, err := buildEngine(ctx, cfg.EngineConfig, logger, m)
	if err != nil {
		return err
	}
	defer cleanup()

	var runner *watch.Runner
	runCfg := watch.RunConfig{
		ChainID:    cfg.ChainID,
		Requests:   requests,
		Interval:   cfg.Interval,
		Iterations: cfg.Iterations,
	}
	if cfg.Out != "" || cfg.PGDSN != "" {
		sink, err := openSink(ctx, cfg.Out, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer sink.Close()
		runner = watch.NewRunner(runCfg, eng, sink, logger)
	} else {
		runner = watch.NewRunner(runCfg, eng, nil, logger)
	}

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("quotes", len(requests)),
		zap.Duration("interval", cfg.Interval),
		zap.Int("iterations", cfg.Iterations),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("out", cfg.Out),
	)

	if cfg.MetricsAddr == "" {
		return runner.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return runner.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
