package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolquote/internal/model"
)

// StateView reads pool state through the v4 StateView lens contract.
type StateView struct {
	address common.Address
	reader  contractReader
}

func NewStateView(caller Caller, address common.Address, opts CallOptions) (*StateView, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("state view address is required")
	}
	reader, err := newContractReader(caller, opts)
	if err != nil {
		return nil, err
	}
	return &StateView{address: address, reader: reader}, nil
}

// Slot0 returns the price slot for a pool. Uninitialized pools report a zero price.
func (s *StateView) Slot0(ctx context.Context, poolID common.Hash) (model.Slot0, error) {
	parsed, err := StateViewABI()
	if err != nil {
		return model.Slot0{}, fmt.Errorf("parse state view abi: %w", err)
	}
	values, err := s.reader.call(ctx, s.address, parsed, "getSlot0", [32]byte(poolID))
	if err != nil {
		return model.Slot0{}, err
	}
	if len(values) < 4 {
		return model.Slot0{}, fmt.Errorf("%w: getSlot0 returned %d values", ErrBadResponse, len(values))
	}

	sqrt, err := uintFromValue(values[0], 160)
	if err != nil {
		return model.Slot0{}, fmt.Errorf("%w: sqrtPriceX96: %w", ErrBadResponse, err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.Slot0{}, fmt.Errorf("%w: tick: %w", ErrBadResponse, err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.Slot0{}, fmt.Errorf("%w: tick: %w", ErrBadResponse, err)
	}
	protocolFee, err := uintFromValue(values[2], 24)
	if err != nil {
		return model.Slot0{}, fmt.Errorf("%w: protocolFee: %w", ErrBadResponse, err)
	}
	lpFee, err := uintFromValue(values[3], 24)
	if err != nil {
		return model.Slot0{}, fmt.Errorf("%w: lpFee: %w", ErrBadResponse, err)
	}

	return model.Slot0{
		SqrtPriceX96: sqrt,
		Tick:         tick,
		ProtocolFee:  uint32(protocolFee.Uint64()),
		LPFee:        uint32(lpFee.Uint64()),
	}, nil
}

// Liquidity returns the in-range liquidity for a pool.
func (s *StateView) Liquidity(ctx context.Context, poolID common.Hash) (*uint256.Int, error) {
	parsed, err := StateViewABI()
	if err != nil {
		return nil, fmt.Errorf("parse state view abi: %w", err)
	}
	values, err := s.reader.call(ctx, s.address, parsed, "getLiquidity", [32]byte(poolID))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: getLiquidity returned no values", ErrBadResponse)
	}
	liq, err := uintFromValue(values[0], 128)
	if err != nil {
		return nil, fmt.Errorf("%w: liquidity: %w", ErrBadResponse, err)
	}
	return liq, nil
}
