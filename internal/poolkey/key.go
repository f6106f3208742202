package poolkey

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"poolquote/internal/feetier"
)

const (
	maxInt24 = 1<<23 - 1
	minInt24 = -1 << 23
)

var (
	ErrInvalidAddress        = errors.New("invalid address")
	ErrIdenticalTokens       = errors.New("token addresses are identical")
	ErrFeeOutOfRange         = errors.New("fee exceeds uint24")
	ErrTickSpacingOutOfRange = errors.New("tick spacing out of range")
	ErrUnsortedCurrencies    = errors.New("currency0 must sort below currency1")
	ErrTokenNotInPool        = errors.New("token is not part of the pool")
)

// Key is the canonical pool key. Currency0 always sorts below Currency1.
type Key struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tickSpacing"`
	Hooks       common.Address `json:"hooks"`
}

// Resolved is a key with its id and whether the fee tier was known.
type Resolved struct {
	Key      Key
	ID       common.Hash
	KnownFee bool
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	tickSpacing *int32
	hooks       string
}

// WithTickSpacing bypasses the fee tier registry.
func WithTickSpacing(spacing int32) Option {
	return func(o *buildOptions) {
		o.tickSpacing = &spacing
	}
}

// WithHooks sets the hook contract address. Empty keeps the zero address.
func WithHooks(hooks string) Option {
	return func(o *buildOptions) {
		o.hooks = hooks
	}
}

// Codec builds keys using a fee tier registry it owns.
type Codec struct {
	registry *feetier.Registry
}

func NewCodec(registry *feetier.Registry) *Codec {
	if registry == nil {
		registry = feetier.Default()
	}
	return &Codec{registry: registry}
}

// Build sorts the pair, resolves tick spacing and validates every field.
func (c *Codec) Build(tokenA, tokenB string, fee uint32, opts ...Option) (Key, error) {
	resolved, err := c.Resolve(tokenA, tokenB, fee, opts...)
	if err != nil {
		return Key{}, err
	}
	return resolved.Key, nil
}

// Resolve is Build plus the pool id and the fee tier lookup result.
func (c *Codec) Resolve(tokenA, tokenB string, fee uint32, opts ...Option) (Resolved, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	a, err := ParseAddress(tokenA)
	if err != nil {
		return Resolved{}, err
	}
	b, err := ParseAddress(tokenB)
	if err != nil {
		return Resolved{}, err
	}
	if a == b {
		return Resolved{}, fmt.Errorf("%w: %s", ErrIdenticalTokens, a.Hex())
	}

	var hooks common.Address
	if strings.TrimSpace(o.hooks) != "" {
		hooks, err = ParseAddress(o.hooks)
		if err != nil {
			return Resolved{}, fmt.Errorf("hooks: %w", err)
		}
	}

	spacing, known := c.registry.Lookup(fee)
	if o.tickSpacing != nil {
		spacing = *o.tickSpacing
	}

	c0, c1 := sortCurrencies(a, b)
	key := Key{
		Currency0:   c0,
		Currency1:   c1,
		Fee:         fee,
		TickSpacing: spacing,
		Hooks:       hooks,
	}
	if err := key.Validate(); err != nil {
		return Resolved{}, err
	}

	id, err := key.ID()
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Key: key, ID: id, KnownFee: known}, nil
}

var defaultCodec = NewCodec(nil)

// Build uses the default fee tier table.
func Build(tokenA, tokenB string, fee uint32, opts ...Option) (Key, error) {
	return defaultCodec.Build(tokenA, tokenB, fee, opts...)
}

// ParseAddress accepts a 20-byte hex address with or without 0x prefix.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}
	return common.HexToAddress(input), nil
}

// Validate checks ordering and integer widths.
func (k Key) Validate() error {
	if bytes.Compare(k.Currency0.Bytes(), k.Currency1.Bytes()) >= 0 {
		return fmt.Errorf("%w: %s >= %s", ErrUnsortedCurrencies, k.Currency0.Hex(), k.Currency1.Hex())
	}
	if k.Fee > feetier.MaxFee {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, k.Fee)
	}
	if k.TickSpacing <= 0 || k.TickSpacing > maxInt24 {
		return fmt.Errorf("%w: %d", ErrTickSpacingOutOfRange, k.TickSpacing)
	}
	return nil
}

// ZeroForOne reports whether swapping tokenIn moves currency0 into the pool.
func (k Key) ZeroForOne(tokenIn common.Address) (bool, error) {
	switch tokenIn {
	case k.Currency0:
		return true, nil
	case k.Currency1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrTokenNotInPool, tokenIn.Hex())
	}
}

// Encode returns abi.encode(currency0, currency1, fee, tickSpacing, hooks).
func (k Key) Encode() ([]byte, error) {
	args, err := keyArguments()
	if err != nil {
		return nil, err
	}
	if k.TickSpacing < minInt24 || k.TickSpacing > maxInt24 {
		return nil, fmt.Errorf("%w: %d", ErrTickSpacingOutOfRange, k.TickSpacing)
	}
	if k.Fee > feetier.MaxFee {
		return nil, fmt.Errorf("%w: %d", ErrFeeOutOfRange, k.Fee)
	}
	data, err := args.Pack(
		k.Currency0,
		k.Currency1,
		new(big.Int).SetUint64(uint64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	)
	if err != nil {
		return nil, fmt.Errorf("pack pool key: %w", err)
	}
	return data, nil
}

// ID is keccak256 of the 160-byte key encoding, matching the pool manager.
func (k Key) ID() (common.Hash, error) {
	data, err := k.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

func sortCurrencies(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

var (
	keyArgs     abi.Arguments
	keyArgsOnce sync.Once
	keyArgsErr  error
)

func keyArguments() (abi.Arguments, error) {
	keyArgsOnce.Do(func() {
		keyArgs, keyArgsErr = buildKeyArguments()
	})
	return keyArgs, keyArgsErr
}

func buildKeyArguments() (abi.Arguments, error) {
	typeNames := []string{"address", "address", "uint24", "int24", "address"}
	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, fmt.Errorf("abi type %s: %w", name, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}
