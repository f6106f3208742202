package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolquote/internal/model"
)

// NativeCurrency is the metadata reported for the zero address, which v4
// pools use for the chain's native asset.
var NativeCurrency = model.TokenMeta{
	Address:  common.Address{}.Hex(),
	Decimals: 18,
	Symbol:   "ETH",
	Name:     "Ether",
	Native:   true,
}

// TokenReader loads ERC20 metadata.
type TokenReader struct {
	reader contractReader
}

func NewTokenReader(caller Caller, opts CallOptions) (*TokenReader, error) {
	reader, err := newContractReader(caller, opts)
	if err != nil {
		return nil, err
	}
	return &TokenReader{reader: reader}, nil
}

// TokenMeta requires decimals. Symbol and name are best effort and fall back
// to the bytes32 encoding used by older tokens.
func (t *TokenReader) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if token == (common.Address{}) {
		return NativeCurrency, nil
	}

	meta := model.TokenMeta{Address: token.Hex()}
	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, err
	}
	bytes32ABI, err := ERC20Bytes32ABI()
	if err != nil {
		return meta, err
	}

	values, err := t.reader.call(ctx, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	meta.Symbol = t.textField(ctx, token, "symbol", stringABI, bytes32ABI)
	meta.Name = t.textField(ctx, token, "name", stringABI, bytes32ABI)
	return meta, nil
}

func (t *TokenReader) textField(ctx context.Context, token common.Address, method string, stringABI, bytes32ABI abi.ABI) string {
	if values, err := t.reader.call(ctx, token, stringABI, method); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := t.reader.call(ctx, token, bytes32ABI, method)
	if err != nil {
		t.reader.opts.Logger.Debug("token text call failed",
			zap.String("token", token.Hex()),
			zap.String("method", method),
			zap.Error(err),
		)
		return ""
	}
	s, _ := bytes32ToString(values[0])
	return s
}
