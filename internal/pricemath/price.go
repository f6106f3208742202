package pricemath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// floatPrec is wide enough that sqrt(price)*2^96 keeps every integer bit.
const floatPrec = 256

var (
	// ErrInvalidPrice is returned for non-positive, NaN, infinite or out of range prices.
	ErrInvalidPrice = errors.New("invalid price")

	// Q96 is 2^96, the sqrtPriceX96 scale.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	q192       = new(big.Int).Lsh(big.NewInt(1), 192)
	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
)

// SqrtPriceX96ToPriceRat returns (sqrtPriceX96 / 2^96)^2 as an exact rational
// in raw token1 units per raw token0 unit.
func SqrtPriceX96ToPriceRat(sqrtPriceX96 *big.Int) *big.Rat {
	if sqrtPriceX96 == nil {
		return new(big.Rat)
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Rat).SetFrac(sq, q192)
}

// SqrtPriceX96ToPrice squares in integer space and narrows to float64 once.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int) float64 {
	price, _ := SqrtPriceX96ToPriceRat(sqrtPriceX96).Float64()
	return price
}

// FloatPriceFromSqrt is the float-first conversion. It drifts for large
// sqrtPriceX96 values and is only meant for display fallbacks.
func FloatPriceFromSqrt(sqrtPriceX96 *big.Int) float64 {
	if sqrtPriceX96 == nil {
		return 0
	}
	sqrt, _ := new(big.Float).SetInt(sqrtPriceX96).Float64()
	ratio := sqrt / math.Exp2(96)
	return ratio * ratio
}

// PriceToSqrtPriceX96 computes floor(sqrt(price) * 2^96).
func PriceToSqrtPriceX96(price float64) (*big.Int, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	f := new(big.Float).SetPrec(floatPrec).SetFloat64(price)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(floatPrec).SetInt(Q96))

	out, _ := f.Int(nil)
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: %v underflows sqrtPriceX96", ErrInvalidPrice, price)
	}
	if out.Cmp(maxUint160) > 0 {
		return nil, fmt.Errorf("%w: %v overflows uint160", ErrInvalidPrice, price)
	}
	return out, nil
}

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick))
}

// AdjustForDecimals converts a raw token1/token0 price into whole-token units.
func AdjustForDecimals(price *big.Rat, decimals0, decimals1 uint8) *big.Rat {
	out := new(big.Rat).Set(price)
	diff := int64(decimals0) - int64(decimals1)
	if diff == 0 {
		return out
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(abs64(diff)), nil)
	if diff > 0 {
		return out.Mul(out, new(big.Rat).SetInt(scale))
	}
	return out.Quo(out, new(big.Rat).SetInt(scale))
}

// FormatPrice renders a rational rounded to places decimal digits.
func FormatPrice(price *big.Rat, places int32) string {
	if price == nil {
		return "0"
	}
	num := decimal.NewFromBigInt(price.Num(), 0)
	den := decimal.NewFromBigInt(price.Denom(), 0)
	return num.DivRound(den, places).String()
}

// FormatAmount renders a raw token amount in whole-token units.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
