// Package chain is the read-only contract-call layer the savings core runs on.
//
// Contracts return ABI-neutral values: *big.Int for integers, string for
// addresses and fixed bytes (0x-prefixed hex), bool, []any for arrays and
// map[string]any for tuples keyed by component name.
package chain

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotDeployed means no bytecode exists at the configured address.
	ErrNotDeployed = errors.New("contract not deployed")
	// ErrMethodNotFound means the contract's ABI does not expose the method.
	ErrMethodNotFound = errors.New("method not found")
	// ErrTimeout means a read did not settle within its allotted duration.
	ErrTimeout = errors.New("contract call timed out")
	// ErrMissingAccount is returned when a read is requested without an account.
	ErrMissingAccount = errors.New("missing account")
)

// Interface names the ABI a contract is bound with.
type Interface string

const (
	SavingsInterface Interface = "savings"
	CircleInterface  Interface = "circle"
	FactoryInterface Interface = "factory"
)

// Contract is a handle to one deployed contract.
type Contract interface {
	Address() string
	HasMethod(name string) bool
	Call(ctx context.Context, method string, params ...any) ([]any, error)
}

// Backend is the blockchain RPC collaborator.
type Backend interface {
	// HasCode reports whether bytecode is deployed at address.
	HasCode(ctx context.Context, address string) (bool, error)
	Bind(address string, iface Interface) (Contract, error)
}

// AddressLength is the length of a 0x-prefixed hex address.
const AddressLength = 42

// IsAddress reports whether s is a well-formed 0x-prefixed hex address.
func IsAddress(s string) bool {
	if len(s) != AddressLength || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
