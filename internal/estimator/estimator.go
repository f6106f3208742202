package estimator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquote/internal/model"
	"poolquote/internal/poolkey"
	"poolquote/internal/pricemath"
)

// feeDenominator is the fee unit: hundredths of a basis point.
const feeDenominator = 1_000_000

var (
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrFeeOutOfRange         = errors.New("fee must be below 1000000")
	ErrAmountOverflow        = errors.New("amount out overflows uint256")
)

var (
	bigFeeDenominator = big.NewInt(feeDenominator)
	hundred           = big.NewRat(100, 1)
)

// Input is everything needed to price one swap against a pool snapshot.
type Input struct {
	TokenIn        string
	TokenOut       string
	AmountIn       *uint256.Int
	Fee            uint32
	Slot0          model.Slot0
	Liquidity      *uint256.Int
	Key            poolkey.Key
	PoolID         common.Hash
	UnknownFeeTier bool
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithZeroLiquidityQuotes returns a zero-impact quote instead of
// ErrInsufficientLiquidity when the pool reports no liquidity.
func WithZeroLiquidityQuotes(allow bool) Option {
	return func(e *Estimator) {
		e.allowZeroLiquidity = allow
	}
}

// Estimator applies a constant-price approximation: the whole trade executes
// at the current slot0 price and tick crossings are ignored.
type Estimator struct {
	allowZeroLiquidity bool
}

func New(opts ...Option) *Estimator {
	e := &Estimator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEstimator = New()

// Estimate runs the default estimator.
func Estimate(in Input) (model.Quote, error) {
	return defaultEstimator.Estimate(in)
}

// Estimate builds a quote from a pool snapshot. It never touches the network.
func (e *Estimator) Estimate(in Input) (model.Quote, error) {
	if !in.Slot0.Initialized() {
		return model.Quote{}, ErrPoolNotInitialized
	}
	if in.Fee >= feeDenominator {
		return model.Quote{}, fmt.Errorf("%w: %d", ErrFeeOutOfRange, in.Fee)
	}

	tokenIn, err := poolkey.ParseAddress(in.TokenIn)
	if err != nil {
		return model.Quote{}, fmt.Errorf("token in: %w", err)
	}
	tokenOut, err := poolkey.ParseAddress(in.TokenOut)
	if err != nil {
		return model.Quote{}, fmt.Errorf("token out: %w", err)
	}
	zeroForOne, err := in.Key.ZeroForOne(tokenIn)
	if err != nil {
		return model.Quote{}, err
	}
	if _, err := in.Key.ZeroForOne(tokenOut); err != nil || tokenOut == tokenIn {
		return model.Quote{}, fmt.Errorf("%w: %s", poolkey.ErrTokenNotInPool, tokenOut.Hex())
	}

	amountIn := new(big.Int)
	if in.AmountIn != nil {
		amountIn = in.AmountIn.ToBig()
	}
	liquidity := new(big.Int)
	if in.Liquidity != nil {
		liquidity = in.Liquidity.ToBig()
	}

	impact, err := e.priceImpact(amountIn, liquidity)
	if err != nil {
		return model.Quote{}, err
	}

	sqrtPrice := in.Slot0.SqrtPriceBig()
	price := pricemath.SqrtPriceX96ToPriceRat(sqrtPrice)
	out, err := AmountOut(amountIn, price, in.Fee, zeroForOne)
	if err != nil {
		return model.Quote{}, err
	}

	return model.Quote{
		TokenIn:        lowerHex(tokenIn),
		TokenOut:       lowerHex(tokenOut),
		AmountIn:       amountIn.String(),
		AmountOut:      out.String(),
		Price:          pricemath.SqrtPriceX96ToPrice(sqrtPrice),
		PriceImpactPct: impact,
		Fee:            in.Fee,
		TickSpacing:    in.Key.TickSpacing,
		PoolID:         in.PoolID.Hex(),
		ZeroForOne:     zeroForOne,
		SqrtPriceX96:   sqrtPrice.String(),
		Tick:           in.Slot0.Tick,
		Liquidity:      liquidity.String(),
		UnknownFeeTier: in.UnknownFeeTier,
	}, nil
}

func (e *Estimator) priceImpact(amountIn, liquidity *big.Int) (float64, error) {
	if liquidity.Sign() == 0 {
		if amountIn.Sign() > 0 && !e.allowZeroLiquidity {
			return 0, ErrInsufficientLiquidity
		}
		return 0, nil
	}
	return PriceImpactPct(amountIn, liquidity), nil
}

// PriceImpactPct returns amountIn / liquidity * 100. Zero liquidity yields 0.
func PriceImpactPct(amountIn, liquidity *big.Int) float64 {
	if liquidity == nil || liquidity.Sign() == 0 || amountIn == nil {
		return 0
	}
	r := new(big.Rat).SetFrac(amountIn, liquidity)
	r.Mul(r, hundred)
	pct, _ := r.Float64()
	return pct
}

// AmountOut applies the price and the fee to amountIn and floors the result.
// price is raw token1 per raw token0.
func AmountOut(amountIn *big.Int, price *big.Rat, fee uint32, zeroForOne bool) (*big.Int, error) {
	if fee >= feeDenominator {
		return nil, fmt.Errorf("%w: %d", ErrFeeOutOfRange, fee)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrPoolNotInitialized
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}

	gross := new(big.Rat).SetInt(amountIn)
	if zeroForOne {
		gross.Mul(gross, price)
	} else {
		gross.Quo(gross, price)
	}

	net := new(big.Rat).Mul(gross, new(big.Rat).SetFrac(big.NewInt(int64(feeDenominator-fee)), bigFeeDenominator))
	out := new(big.Int).Quo(net.Num(), net.Denom())
	if out.BitLen() > 256 {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

func lowerHex(addr common.Address) string {
	return "0x" + common.Bytes2Hex(addr.Bytes())
}
