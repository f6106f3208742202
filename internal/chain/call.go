package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	// ErrRPCUnavailable wraps every transport failure or timeout.
	ErrRPCUnavailable = errors.New("rpc unavailable")
	// ErrBadResponse is returned when a call succeeds but cannot be decoded.
	ErrBadResponse = errors.New("unexpected rpc response")
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 200 * time.Millisecond
)

// ObserveFunc receives the outcome of each logical call, retries included.
type ObserveFunc func(method string, elapsed time.Duration, err error)

// CallOptions bounds every contract call made by an adapter.
type CallOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
	Observe      ObserveFunc
}

func (o CallOptions) withDefaults() CallOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type contractReader struct {
	caller Caller
	opts   CallOptions
}

func newContractReader(caller Caller, opts CallOptions) (contractReader, error) {
	if caller == nil {
		return contractReader{}, fmt.Errorf("chain caller is nil")
	}
	return contractReader{caller: caller, opts: opts.withDefaults()}, nil
}

func (r contractReader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	start := time.Now()
	err = withRetry(ctx, r.opts.MaxRetries, r.opts.RetryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		out, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			r.opts.Logger.Debug("contract call failed",
				zap.String("method", method),
				zap.String("contract", to.Hex()),
				zap.Error(err),
			)
			return err
		}
		resp = out
		return nil
	})
	if r.opts.Observe != nil {
		r.opts.Observe(method, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %w", ErrRPCUnavailable, method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", ErrBadResponse, method, err)
	}
	return values, nil
}
