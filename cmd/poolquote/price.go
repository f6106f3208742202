package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"poolquote/internal/config"
	"poolquote/internal/engine"
	"poolquote/internal/model"
	"poolquote/internal/pricemath"
)

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Convert between sqrtPriceX96 and a token1/token0 price",
		RunE:  runPrice,
	}
	cmd.Flags().String("sqrt-price-x96", "", "Q64.96 square root price to convert")
	cmd.Flags().Float64("price", 0, "token1/token0 price to convert")
	cmd.Flags().Uint8("decimals0", 0, "currency0 decimals for the human price")
	cmd.Flags().Uint8("decimals1", 0, "currency1 decimals for the human price")
	cmd.Flags().Int32("places", 18, "decimal places for the human price")
	addLogFlag(cmd)
	return cmd
}

type priceOutput struct {
	SqrtPriceX96 string  `json:"sqrt_price_x96"`
	Price        float64 `json:"price"`
	HumanPrice   string  `json:"human_price,omitempty"`
}

func runPrice(cmd *cobra.Command, _ []string) error {
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

	sqrtStr, _ := cmd.Flags().GetString("sqrt-price-x96")
	price, _ := cmd.Flags().GetFloat64("price")
	decimals0, _ := cmd.Flags().GetUint8("decimals0")
	decimals1, _ := cmd.Flags().GetUint8("decimals1")
	places, _ := cmd.Flags().GetInt32("places")

	hasSqrt := sqrtStr != ""
	hasPrice := cmd.Flags().Changed("price")
	if hasSqrt == hasPrice {
		return fmt.Errorf("exactly one of --sqrt-price-x96 or --price is required")
	}

	eng := engine.New(engine.Options{Logger: logger})
	defer eng.Close()

	var sqrt *big.Int
	if hasSqrt {
		parsed, err := model.ParseUint256(sqrtStr)
		if err != nil {
			return fmt.Errorf("sqrt-price-x96: %w", err)
		}
		sqrt = parsed.ToBig()
	} else {
		sqrt, err = eng.ConvertPrice(price)
		if err != nil {
			return err
		}
	}

	out := priceOutput{
		SqrtPriceX96: sqrt.String(),
		Price:        eng.ConvertSqrtPrice(sqrt),
	}
	if decimals0 != 0 || decimals1 != 0 {
		human := pricemath.AdjustForDecimals(pricemath.SqrtPriceX96ToPriceRat(sqrt), decimals0, decimals1)
		out.HumanPrice = pricemath.FormatPrice(human, places)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
