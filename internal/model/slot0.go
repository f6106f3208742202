package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Slot0 is a read-only snapshot of a pool's price slot.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
	ProtocolFee  uint32
	LPFee        uint32
}

// Initialized reports whether the pool has a non-zero price.
func (s Slot0) Initialized() bool {
	return s.SqrtPriceX96 != nil && !s.SqrtPriceX96.IsZero()
}

// SqrtPriceBig returns the price as a big.Int, zero when unset.
func (s Slot0) SqrtPriceBig() *big.Int {
	if s.SqrtPriceX96 == nil {
		return new(big.Int)
	}
	return s.SqrtPriceX96.ToBig()
}

type slot0JSON struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
	ProtocolFee  uint32 `json:"protocol_fee"`
	LPFee        uint32 `json:"lp_fee"`
}

// MarshalJSON encodes the price as a decimal string.
func (s Slot0) MarshalJSON() ([]byte, error) {
	return json.Marshal(slot0JSON{
		SqrtPriceX96: s.SqrtPriceBig().String(),
		Tick:         s.Tick,
		ProtocolFee:  s.ProtocolFee,
		LPFee:        s.LPFee,
	})
}

// UnmarshalJSON decodes a Slot0 from JSON.
func (s *Slot0) UnmarshalJSON(data []byte) error {
	var raw slot0JSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := ParseUint256(raw.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("sqrt_price_x96: %w", err)
	}
	*s = Slot0{
		SqrtPriceX96: price,
		Tick:         raw.Tick,
		ProtocolFee:  raw.ProtocolFee,
		LPFee:        raw.LPFee,
	}
	return nil
}

// ParseUint256 parses a non-negative base-10 integer that fits 256 bits.
// Empty input parses as zero.
func ParseUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative integer %q", s)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("integer %q overflows uint256", s)
	}
	return u, nil
}

// FormatUint256 renders nil as "0".
func FormatUint256(u *uint256.Int) string {
	if u == nil {
		return "0"
	}
	return u.ToBig().String()
}
