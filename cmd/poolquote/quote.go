package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolquote/internal/config"
	"poolquote/internal/metrics"
	"poolquote/internal/model"
	"poolquote/internal/pricemath"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate a single-pool swap",
		RunE:  runQuote,
	}
	cmd.Flags().String("token-in", "", "input token address")
	cmd.Flags().String("token-out", "", "output token address")
	cmd.Flags().String("amount", "", "input amount in raw token units")
	cmd.Flags().Uint32("fee", 3000, "fee in hundredths of a bip")
	cmd.Flags().Bool("human", false, "add decimal-adjusted amounts and price")
	addEngineFlags(cmd)
	return cmd
}

type humanQuote struct {
	TokenInSymbol  string `json:"token_in_symbol"`
	TokenOutSymbol string `json:"token_out_symbol"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	Price          string `json:"price"`
}

type quoteOutput struct {
	model.Quote
	Human *humanQuote `json:"human,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenIn, _ := cmd.Flags().GetString("token-in")
	tokenOut, _ := cmd.Flags().GetString("token-out")
	amountStr, _ := cmd.Flags().GetString("amount")
	fee, _ := cmd.Flags().GetUint32("fee")
	human, _ := cmd.Flags().GetBool("human")
	if tokenIn == "" || tokenOut == "" || amountStr == "" {
		return fmt.Errorf("token-in, token-out and amount are required")
	}
	amountIn, err := model.ParseUint256(amountStr)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer cleanup()

	q, err := eng.Quote(ctx, tokenIn, tokenOut, amountIn, fee)
	if err != nil {
		return err
	}
	logger.Debug("quote",
		zap.String("pool_id", q.PoolID),
		zap.String("amount_out", q.AmountOut),
		zap.Float64("price_impact_pct", q.PriceImpactPct),
	)

	out := quoteOutput{Quote: q}
	if human {
		out.Human, err = humanize(ctx, eng, q)
		if err != nil {
			return err
		}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

type tokenMetaSource interface {
	TokenMeta(ctx context.Context, token string) (model.TokenMeta, error)
}

// humanize renders amounts in whole tokens and the price as tokenOut per tokenIn.
func humanize(ctx context.Context, tokens tokenMetaSource, q model.Quote) (*humanQuote, error) {
	metaIn, err := tokens.TokenMeta(ctx, q.TokenIn)
	if err != nil {
		return nil, err
	}
	metaOut, err := tokens.TokenMeta(ctx, q.TokenOut)
	if err != nil {
		return nil, err
	}
	amountIn, ok := new(big.Int).SetString(q.AmountIn, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount in %q", q.AmountIn)
	}
	amountOut, ok := new(big.Int).SetString(q.AmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount out %q", q.AmountOut)
	}

	h := &humanQuote{
		TokenInSymbol:  metaIn.Label(),
		TokenOutSymbol: metaOut.Label(),
		AmountIn:       pricemath.FormatAmount(amountIn, metaIn.Decimals),
		AmountOut:      pricemath.FormatAmount(amountOut, metaOut.Decimals),
	}
	if amountIn.Sign() > 0 {
		rate := new(big.Rat).SetFrac(amountOut, amountIn)
		h.Price = pricemath.FormatPrice(pricemath.AdjustForDecimals(rate, metaIn.Decimals, metaOut.Decimals), 8)
	}
	return h, nil
}
