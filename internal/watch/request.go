package watch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"poolquote/internal/model"
	"poolquote/internal/poolkey"
)

// Request is one quote polled on every tick.
type Request struct {
	TokenIn  string
	TokenOut string
	AmountIn *uint256.Int
	Fee      uint32
}

func (r Request) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", r.TokenIn, r.TokenOut, model.FormatUint256(r.AmountIn), r.Fee)
}

// ParseRequests converts tokenIn:tokenOut:amount:fee entries.
func ParseRequests(inputs []string) ([]Request, error) {
	requests := make([]Request, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		parts := strings.Split(input, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid quote %q: want tokenIn:tokenOut:amount:fee", input)
		}
		in, err := poolkey.ParseAddress(parts[0])
		if err != nil {
			return nil, fmt.Errorf("quote %q token in: %w", input, err)
		}
		out, err := poolkey.ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("quote %q token out: %w", input, err)
		}
		amount, err := model.ParseUint256(parts[2])
		if err != nil {
			return nil, fmt.Errorf("quote %q amount: %w", input, err)
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("quote %q amount must be positive", input)
		}
		fee, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("quote %q fee: %w", input, err)
		}
		requests = append(requests, Request{
			TokenIn:  in.Hex(),
			TokenOut: out.Hex(),
			AmountIn: amount,
			Fee:      uint32(fee),
		})
	}
	return requests, nil
}
