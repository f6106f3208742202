package feetier

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultTickSpacing is returned for fee tiers missing from the table.
const DefaultTickSpacing int32 = 60

// MaxFee is the largest value representable as uint24.
const MaxFee uint32 = 1<<24 - 1

// ErrUnknownFeeTier is only raised by callers running in strict mode.
var ErrUnknownFeeTier = errors.New("unknown fee tier")

// Registry maps fee tiers (hundredths of a bip) to tick spacing.
type Registry struct {
	spacing map[uint32]int32
}

// Default returns the 0.05% / 0.3% / 1% table.
func Default() *Registry {
	return &Registry{spacing: map[uint32]int32{
		500:   10,
		3000:  60,
		10000: 200,
	}}
}

// New layers extra tiers over the default table.
func New(extra map[uint32]int32) (*Registry, error) {
	r := Default()
	for fee, spacing := range extra {
		if fee > MaxFee {
			return nil, fmt.Errorf("fee %d exceeds uint24", fee)
		}
		if spacing <= 0 || spacing > 1<<23-1 {
			return nil, fmt.Errorf("tick spacing %d for fee %d out of range", spacing, fee)
		}
		r.spacing[fee] = spacing
	}
	return r, nil
}

// TickSpacing never fails. Unknown fees silently resolve to DefaultTickSpacing.
func (r *Registry) TickSpacing(fee uint32) int32 {
	spacing, _ := r.Lookup(fee)
	return spacing
}

// Lookup is TickSpacing plus a flag telling whether the fee was in the table.
func (r *Registry) Lookup(fee uint32) (int32, bool) {
	if r == nil {
		return Default().Lookup(fee)
	}
	spacing, ok := r.spacing[fee]
	if !ok {
		return DefaultTickSpacing, false
	}
	return spacing, true
}

// Fees lists known tiers in ascending order.
func (r *Registry) Fees() []uint32 {
	out := make([]uint32, 0, len(r.spacing))
	for fee := range r.spacing {
		out = append(out, fee)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
