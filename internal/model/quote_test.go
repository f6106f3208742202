package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/holiman/uint256"
)

func TestQuoteJSONStringFields(t *testing.T) {
	q := Quote{
		TokenIn:      "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		TokenOut:     "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		AmountIn:     "1000000000000000000",
		AmountOut:    "1994000000000000000",
		Price:        2,
		Fee:          3000,
		SqrtPriceX96: "112045541949572279837463876454",
		Liquidity:    "5000000000000000000",
	}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, field := range []string{"amount_in", "amount_out", "sqrt_price_x96", "liquidity"} {
		if _, ok := decoded[field].(string); !ok {
			t.Fatalf("%s should be string", field)
		}
	}
	if _, ok := decoded["unknown_fee_tier"]; ok {
		t.Fatalf("unknown_fee_tier should be omitted when false")
	}
}

func TestQuoteRecordFlattensQuote(t *testing.T) {
	rec := QuoteRecord{ChainID: 1, ObservedAt: "2024-01-01T00:00:00Z", Quote: Quote{PoolID: "0xabc"}}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["pool_id"] != "0xabc" {
		t.Fatalf("quote fields should be inlined: %s", data)
	}
}

func TestSlot0JSONRoundTrip(t *testing.T) {
	price, err := ParseUint256("1461446703485210103287273052203988822378723970341")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	original := Slot0{SqrtPriceX96: price, Tick: -887272, ProtocolFee: 0, LPFee: 3000}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Slot0
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestSlot0Initialized(t *testing.T) {
	if (Slot0{}).Initialized() {
		t.Fatalf("nil price should not be initialized")
	}
	if (Slot0{SqrtPriceX96: uint256.NewInt(0)}).Initialized() {
		t.Fatalf("zero price should not be initialized")
	}
	if !(Slot0{SqrtPriceX96: uint256.NewInt(1)}).Initialized() {
		t.Fatalf("non-zero price should be initialized")
	}
}

func TestParseUint256Invalid(t *testing.T) {
	for _, in := range []string{"-1", "abc", "1.5", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		if _, err := ParseUint256(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestTokenMetaLabel(t *testing.T) {
	if got := (TokenMeta{Address: "0xabc", Symbol: "USDC"}).Label(); got != "USDC" {
		t.Fatalf("label: %s", got)
	}
	if got := (TokenMeta{Address: "0xabc"}).Label(); got != "0xabc" {
		t.Fatalf("label fallback: %s", got)
	}
}
