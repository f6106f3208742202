package poolkey

import (
	"errors"
	"testing"
)

func TestFromTupleMatchesBuild(t *testing.T) {
	want, err := Build(usdc, weth, 500)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := FromTuple([]string{weth, usdc, "500", "10"})
	if err != nil {
		t.Fatalf("from tuple: %v", err)
	}
	if got != want {
		t.Fatalf("tuple key mismatch: %+v != %+v", got, want)
	}
}

func TestDecodeKeyShapes(t *testing.T) {
	want, err := Build(usdc, weth, 3000, WithHooks(hook))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	array := []byte(`["` + usdc + `","` + weth + `",3000,60,"` + hook + `"]`)
	fromArray, err := DecodeKey(array)
	if err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if fromArray != want {
		t.Fatalf("array key mismatch: %+v", fromArray)
	}

	object := []byte(`{"currency0":"` + usdc + `","currency1":"` + weth + `","fee":3000,"tickSpacing":60,"hooks":"` + hook + `"}`)
	fromObject, err := DecodeKey(object)
	if err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if fromObject != want {
		t.Fatalf("object key mismatch: %+v", fromObject)
	}
}

func TestDecodeKeyInvalid(t *testing.T) {
	if _, err := DecodeKey([]byte(`"nope"`)); err == nil {
		t.Fatalf("expected error for scalar")
	}
	if _, err := DecodeKey([]byte(`["0x1", "0x2", 1, 1]`)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := FromTuple([]string{usdc, weth}); err == nil {
		t.Fatalf("expected error for short tuple")
	}
}
