package poolkey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FromTuple adapts the positional [currency0, currency1, fee, tickSpacing, hooks]
// shape. Currencies are re-sorted so the result is always canonical.
func FromTuple(fields []string) (Key, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return Key{}, fmt.Errorf("pool key tuple needs 4 or 5 fields, got %d", len(fields))
	}

	a, err := ParseAddress(fields[0])
	if err != nil {
		return Key{}, fmt.Errorf("currency0: %w", err)
	}
	b, err := ParseAddress(fields[1])
	if err != nil {
		return Key{}, fmt.Errorf("currency1: %w", err)
	}
	if a == b {
		return Key{}, fmt.Errorf("%w: %s", ErrIdenticalTokens, a.Hex())
	}

	fee, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("fee: %w", err)
	}
	spacing, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("tick spacing: %w", err)
	}

	key := Key{Fee: uint32(fee), TickSpacing: int32(spacing)}
	key.Currency0, key.Currency1 = sortCurrencies(a, b)
	if len(fields) == 5 && strings.TrimSpace(fields[4]) != "" {
		key.Hooks, err = ParseAddress(fields[4])
		if err != nil {
			return Key{}, fmt.Errorf("hooks: %w", err)
		}
	}

	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// DecodeKey accepts either a JSON object with named fields or a JSON array
// in tuple order.
func DecodeKey(data []byte) (Key, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Key{}, fmt.Errorf("empty pool key")
	}

	switch trimmed[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Key{}, fmt.Errorf("decode pool key tuple: %w", err)
		}
		fields := make([]string, 0, len(raw))
		for _, item := range raw {
			fields = append(fields, strings.Trim(string(bytes.TrimSpace(item)), `"`))
		}
		return FromTuple(fields)
	case '{':
		var obj struct {
			Currency0   string `json:"currency0"`
			Currency1   string `json:"currency1"`
			Fee         uint32 `json:"fee"`
			TickSpacing int32  `json:"tickSpacing"`
			Hooks       string `json:"hooks"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Key{}, fmt.Errorf("decode pool key object: %w", err)
		}
		return FromTuple([]string{
			obj.Currency0,
			obj.Currency1,
			strconv.FormatUint(uint64(obj.Fee), 10),
			strconv.FormatInt(int64(obj.TickSpacing), 10),
			obj.Hooks,
		})
	default:
		return Key{}, fmt.Errorf("pool key must be a JSON object or array")
	}
}
