package feetier

import (
	"reflect"
	"testing"
)

func TestDefaultTickSpacing(t *testing.T) {
	r := Default()
	cases := map[uint32]int32{
		500:   10,
		3000:  60,
		10000: 200,
		1234:  60,
		0:     60,
	}
	for fee, want := range cases {
		if got := r.TickSpacing(fee); got != want {
			t.Fatalf("fee %d: got %d want %d", fee, got, want)
		}
	}
}

func TestLookupKnownFlag(t *testing.T) {
	r := Default()
	if _, ok := r.Lookup(3000); !ok {
		t.Fatalf("3000 should be known")
	}
	spacing, ok := r.Lookup(1234)
	if ok {
		t.Fatalf("1234 should be unknown")
	}
	if spacing != DefaultTickSpacing {
		t.Fatalf("fallback spacing mismatch: %d", spacing)
	}
}

func TestNewWithExtraTiers(t *testing.T) {
	r, err := New(map[uint32]int32{100: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := r.TickSpacing(100); got != 1 {
		t.Fatalf("extra tier: got %d", got)
	}
	if got := r.TickSpacing(500); got != 10 {
		t.Fatalf("default tier lost: got %d", got)
	}

	want := []uint32{100, 500, 3000, 10000}
	if !reflect.DeepEqual(r.Fees(), want) {
		t.Fatalf("fees mismatch: %v", r.Fees())
	}

	// Registries do not share state.
	if _, ok := Default().Lookup(100); ok {
		t.Fatalf("default registry mutated")
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(map[uint32]int32{1 << 24: 1}); err == nil {
		t.Fatalf("expected error for fee overflow")
	}
	if _, err := New(map[uint32]int32{100: 0}); err == nil {
		t.Fatalf("expected error for zero spacing")
	}
}

func TestNilRegistryUsesDefault(t *testing.T) {
	var r *Registry
	if got := r.TickSpacing(500); got != 10 {
		t.Fatalf("nil registry: got %d", got)
	}
}
