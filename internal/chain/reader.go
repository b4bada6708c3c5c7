package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultCallTimeout = 10 * time.Second
	DefaultScanTimeout = 15 * time.Second
)

// Reader issues read calls with per-call timeouts and logs every failure.
// It holds no mutable state and is safe for concurrent use.
type Reader struct {
	backend     Backend
	log         zerolog.Logger
	callTimeout time.Duration
	scanTimeout time.Duration
	after       func(time.Duration) <-chan time.Time
}

// Option configures a Reader.
type Option func(*Reader)

// WithTimeouts overrides the single-call and discovery timeouts. Zero values keep the defaults.
func WithTimeouts(call, scan time.Duration) Option {
	return func(r *Reader) {
		if call > 0 {
			r.callTimeout = call
		}
		if scan > 0 {
			r.scanTimeout = scan
		}
	}
}

// WithTimer replaces the timer source used to race calls, for tests.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Reader) {
		r.after = after
	}
}

// NewReader creates a Reader over backend.
func NewReader(backend Backend, log zerolog.Logger, opts ...Option) *Reader {
	r := &Reader{
		backend:     backend,
		log:         log.With().Str("component", "contract_reader").Logger(),
		callTimeout: DefaultCallTimeout,
		scanTimeout: DefaultScanTimeout,
		after:       time.After,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) CallTimeout() time.Duration { return r.callTimeout }
func (r *Reader) ScanTimeout() time.Duration { return r.scanTimeout }

// Open checks that bytecode is deployed at address and binds it to iface.
// Any failure of the existence check is reported as ErrNotDeployed.
func (r *Reader) Open(ctx context.Context, address string, iface Interface) (Contract, error) {
	if !IsAddress(address) {
		r.log.Debug().Str("contract", address).Msg("Address not configured or malformed")
		return nil, fmt.Errorf("%s: %w", address, ErrNotDeployed)
	}

	deployed, err := r.backend.HasCode(ctx, address)
	if err != nil {
		r.log.Warn().Err(err).Str("contract", address).Msg("Bytecode check failed")
		return nil, fmt.Errorf("%s: %w", address, ErrNotDeployed)
	}
	if !deployed {
		r.log.Debug().Str("contract", address).Msg("No bytecode at address")
		return nil, fmt.Errorf("%s: %w", address, ErrNotDeployed)
	}

	c, err := r.backend.Bind(address, iface)
	if err != nil {
		return nil, fmt.Errorf("bind %s as %s: %w", address, iface, err)
	}
	return c, nil
}

type callResult struct {
	out []any
	err error
}

// Try invokes method on c and races it against timeout. A missing method fails
// immediately without invoking anything. The call's context is cancelled once
// Try returns.
func (r *Reader) Try(ctx context.Context, c Contract, method string, timeout time.Duration, params ...any) ([]any, error) {
	if !c.HasMethod(method) {
		return nil, fmt.Errorf("%s.%s: %w", c.Address(), method, ErrMethodNotFound)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		out, err := c.Call(ctx, method, params...)
		done <- callResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Address(), method, res.err)
		}
		return res.out, nil
	case <-r.after(timeout):
		return nil, fmt.Errorf("%s.%s after %s: %w", c.Address(), method, timeout, ErrTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s.%s: %w", c.Address(), method, ctx.Err())
	}
}

// Read calls method and decodes its outputs, returning def on any failure.
// Failures are logged, never returned.
func Read[T any](ctx context.Context, r *Reader, c Contract, method string, timeout time.Duration, def T, decode func([]any) (T, error), params ...any) T {
	out, err := r.Try(ctx, c, method, timeout, params...)
	if err != nil {
		r.log.Warn().Err(err).Str("contract", c.Address()).Str("method", method).Msg("Contract read failed, using default")
		return def
	}

	v, err := decode(out)
	if err != nil {
		r.log.Warn().Err(err).Str("contract", c.Address()).Str("method", method).Msg("Undecodable contract output, using default")
		return def
	}
	return v
}
