package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

var (
	stateViewAddr = common.HexToAddress("0x7ffe42c4a5deea5b0fec41c94c136cf115597227")
	usdcAddr      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	mkrAddr       = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	poolID        = common.HexToHash("0x21c67e77068de97969ba93d4aab21826d33ca12bb9f565d8496e8fda8a82ca27")
)

type slot0Fixture struct {
	sqrt        *big.Int
	tick        int64
	protocolFee uint64
	lpFee       uint64
}

type tokenFixture struct {
	decimals uint8
	symbol   string
	name     string
	bytes32  bool
}

type fakeEth struct {
	mu        sync.Mutex
	calls     map[string]int
	failFirst int
	delay     time.Duration

	slot0     map[common.Hash]slot0Fixture
	liquidity map[common.Hash]*big.Int
	tokens    map[common.Address]tokenFixture
}

func (f *fakeEth) ChainId(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(1)), nil
}

func (f *fakeEth) Call(ctx context.Context, args map[string]interface{}, block string) (hexutil.Bytes, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	raw, _ := args["input"].(string)
	if raw == "" {
		raw, _ = args["data"].(string)
	}
	data, err := hexutil.Decode(raw)
	if err != nil || len(data) < 4 {
		return nil, fmt.Errorf("bad call data %q", raw)
	}
	to := common.HexToAddress(fmt.Sprint(args["to"]))

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}

	svABI, _ := StateViewABI()
	if to == stateViewAddr {
		method, err := svABI.MethodById(data[:4])
		if err != nil {
			return nil, err
		}
		f.calls[method.Name]++
		if f.failFirst > 0 {
			f.failFirst--
			return nil, errors.New("upstream unavailable")
		}
		inputs, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		id := common.Hash(inputs[0].([32]byte))
		switch method.Name {
		case "getSlot0":
			s, ok := f.slot0[id]
			if !ok {
				s = slot0Fixture{sqrt: new(big.Int)}
			}
			return method.Outputs.Pack(s.sqrt, big.NewInt(s.tick), new(big.Int).SetUint64(s.protocolFee), new(big.Int).SetUint64(s.lpFee))
		case "getLiquidity":
			liq, ok := f.liquidity[id]
			if !ok {
				liq = new(big.Int)
			}
			return method.Outputs.Pack(liq)
		}
	}

	tok, ok := f.tokens[to]
	if !ok {
		return hexutil.Bytes{}, nil
	}
	parsed, _ := ERC20ABI()
	if tok.bytes32 {
		parsed, _ = ERC20Bytes32ABI()
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(tok.decimals)
	case "symbol":
		return packText(method, tok.symbol, tok.bytes32)
	default:
		return packText(method, tok.name, tok.bytes32)
	}
}

func packText(method *abi.Method, s string, asBytes32 bool) ([]byte, error) {
	if !asBytes32 {
		return method.Outputs.Pack(s)
	}
	var b [32]byte
	copy(b[:], s)
	return method.Outputs.Pack(b)
}

func (f *fakeEth) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newInprocClient(t *testing.T, fe *fakeEth) *Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	client := NewClientFromRPC(gethrpc.DialInProc(srv))
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return client
}

func fastOptions() CallOptions {
	return CallOptions{Timeout: time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestStateViewReadsSlot0AndLiquidity(t *testing.T) {
	sqrt, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	fe := &fakeEth{
		slot0:     map[common.Hash]slot0Fixture{poolID: {sqrt: sqrt, tick: -200, lpFee: 3000}},
		liquidity: map[common.Hash]*big.Int{poolID: big.NewInt(123456789)},
	}
	sv, err := NewStateView(newInprocClient(t, fe), stateViewAddr, fastOptions())
	if err != nil {
		t.Fatalf("new state view: %v", err)
	}

	ctx := context.Background()
	slot0, err := sv.Slot0(ctx, poolID)
	if err != nil {
		t.Fatalf("slot0: %v", err)
	}
	if slot0.SqrtPriceX96.ToBig().Cmp(sqrt) != 0 || slot0.Tick != -200 || slot0.LPFee != 3000 {
		t.Fatalf("slot0 mismatch: %+v", slot0)
	}

	liq, err := sv.Liquidity(ctx, poolID)
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	if liq.Uint64() != 123456789 {
		t.Fatalf("liquidity mismatch: %s", liq)
	}
}

func TestStateViewUninitializedPool(t *testing.T) {
	sv, err := NewStateView(newInprocClient(t, &fakeEth{}), stateViewAddr, fastOptions())
	if err != nil {
		t.Fatalf("new state view: %v", err)
	}
	slot0, err := sv.Slot0(context.Background(), common.Hash{1})
	if err != nil {
		t.Fatalf("slot0: %v", err)
	}
	if slot0.Initialized() {
		t.Fatalf("unknown pool should have zero price")
	}
}

func TestStateViewRetries(t *testing.T) {
	fe := &fakeEth{failFirst: 2, liquidity: map[common.Hash]*big.Int{poolID: big.NewInt(7)}}
	var observed []error
	opts := fastOptions()
	opts.Observe = func(method string, _ time.Duration, err error) {
		observed = append(observed, err)
	}
	sv, _ := NewStateView(newInprocClient(t, fe), stateViewAddr, opts)

	liq, err := sv.Liquidity(context.Background(), poolID)
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if liq.Uint64() != 7 {
		t.Fatalf("liquidity mismatch: %s", liq)
	}
	if got := fe.count("getLiquidity"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(observed) != 1 || observed[0] != nil {
		t.Fatalf("observer should see one successful call: %v", observed)
	}
}

func TestStateViewUnavailable(t *testing.T) {
	fe := &fakeEth{failFirst: 10}
	sv, _ := NewStateView(newInprocClient(t, fe), stateViewAddr, fastOptions())

	_, err := sv.Slot0(context.Background(), poolID)
	if !errors.Is(err, ErrRPCUnavailable) {
		t.Fatalf("expected ErrRPCUnavailable, got %v", err)
	}
	if got := fe.count("getSlot0"); got != 3 {
		t.Fatalf("expected 1 attempt plus 2 retries, got %d", got)
	}
}

func TestStateViewTimeout(t *testing.T) {
	fe := &fakeEth{delay: 500 * time.Millisecond}
	opts := CallOptions{Timeout: 20 * time.Millisecond, MaxRetries: 0, RetryBackoff: time.Millisecond}
	sv, _ := NewStateView(newInprocClient(t, fe), stateViewAddr, opts)

	start := time.Now()
	_, err := sv.Slot0(context.Background(), poolID)
	if !errors.Is(err, ErrRPCUnavailable) {
		t.Fatalf("expected ErrRPCUnavailable, got %v", err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("timeout was not applied")
	}
}

func TestTokenMeta(t *testing.T) {
	fe := &fakeEth{tokens: map[common.Address]tokenFixture{
		usdcAddr: {decimals: 6, symbol: "USDC", name: "USD Coin"},
		mkrAddr:  {decimals: 18, symbol: "MKR", name: "Maker", bytes32: true},
	}}
	tr, err := NewTokenReader(newInprocClient(t, fe), fastOptions())
	if err != nil {
		t.Fatalf("new token reader: %v", err)
	}
	ctx := context.Background()

	usdc, err := tr.TokenMeta(ctx, usdcAddr)
	if err != nil {
		t.Fatalf("usdc meta: %v", err)
	}
	if usdc.Decimals != 6 || usdc.Symbol != "USDC" || usdc.Name != "USD Coin" {
		t.Fatalf("usdc meta mismatch: %+v", usdc)
	}

	mkr, err := tr.TokenMeta(ctx, mkrAddr)
	if err != nil {
		t.Fatalf("mkr meta: %v", err)
	}
	if mkr.Decimals != 18 || mkr.Symbol != "MKR" || mkr.Name != "Maker" {
		t.Fatalf("bytes32 fallback mismatch: %+v", mkr)
	}

	native, err := tr.TokenMeta(ctx, common.Address{})
	if err != nil || native.Symbol != "ETH" || !native.Native {
		t.Fatalf("native currency meta mismatch: %+v %v", native, err)
	}
}

func TestTokenMetaNoContract(t *testing.T) {
	tr, _ := NewTokenReader(newInprocClient(t, &fakeEth{}), fastOptions())
	_, err := tr.TokenMeta(context.Background(), common.HexToAddress("0x0000000000000000000000000000000000000bad"))
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for empty code, got %v", err)
	}
}

func TestGetChainID(t *testing.T) {
	client := newInprocClient(t, &fakeEth{})
	id, err := client.GetChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if id.Uint64() != 1 {
		t.Fatalf("chain id mismatch: %s", id)
	}
}

func TestNewStateViewRequiresAddress(t *testing.T) {
	if _, err := NewStateView(&Client{}, common.Address{}, CallOptions{}); err == nil || !strings.Contains(err.Error(), "address") {
		t.Fatalf("expected address error, got %v", err)
	}
}
