// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/example/savings-ledger/internal/chain"
)

// Handler answers one contract method.
type Handler func(ctx context.Context, params ...any) ([]any, error)

// Returns is a Handler that always yields out.
func Returns(out ...any) Handler {
	return func(context.Context, ...any) ([]any, error) {
		return out, nil
	}
}

// Fails is a Handler that always returns err.
func Fails(err error) Handler {
	return func(context.Context, ...any) ([]any, error) {
		return nil, err
	}
}

// ErrReverted is a generic revert for tests.
var ErrReverted = errors.New("execution reverted")

// Hangs is a Handler that blocks until the call is cancelled.
func Hangs() Handler {
	return func(ctx context.Context, _ ...any) ([]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Contract is a fake deployed contract.
type Contract struct {
	address string
	methods map[string]Handler

	mu    sync.Mutex
	calls []string
}

func (c *Contract) Address() string { return c.address }

func (c *Contract) HasMethod(name string) bool {
	_, ok := c.methods[name]
	return ok
}

func (c *Contract) Call(ctx context.Context, method string, params ...any) ([]any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	h, ok := c.methods[method]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no method %s", method)
	}
	return h(ctx, params...)
}

// Calls returns the methods invoked so far, in order.
func (c *Contract) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Backend is an in-memory chain.Backend.
type Backend struct {
	mu        sync.Mutex
	contracts map[string]*Contract
	codeErr   map[string]error
	codeCalls int
}

// NewBackend creates an empty backend. Addresses without a deployed contract have no bytecode.
func NewBackend() *Backend {
	return &Backend{
		contracts: make(map[string]*Contract),
		codeErr:   make(map[string]error),
	}
}

// Deploy registers a contract at address with the given method handlers.
func (b *Backend) Deploy(address string, methods map[string]Handler) *Contract {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Contract{address: address, methods: methods}
	b.contracts[address] = c
	return c
}

// FailCode makes the bytecode check for address return err.
func (b *Backend) FailCode(address string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codeErr[address] = err
}

// CodeChecks returns how many bytecode checks were made.
func (b *Backend) CodeChecks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codeCalls
}

func (b *Backend) HasCode(_ context.Context, address string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codeCalls++
	if err := b.codeErr[address]; err != nil {
		return false, err
	}
	_, ok := b.contracts[address]
	return ok, nil
}

func (b *Backend) Bind(address string, _ chain.Interface) (chain.Contract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contracts[address]
	if !ok {
		return nil, fmt.Errorf("%s: %w", address, chain.ErrNotDeployed)
	}
	return c, nil
}

// Entry builds a history tuple.
func Entry(amount int64, timestamp int64, txID string) map[string]any {
	return map[string]any{
		"amount":    big.NewInt(amount),
		"timestamp": big.NewInt(timestamp),
		"txId":      txID,
	}
}

// Entries wraps history tuples into an array value.
func Entries(entries ...map[string]any) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

// Uint builds an integer output value.
func Uint(n int64) *big.Int { return big.NewInt(n) }
