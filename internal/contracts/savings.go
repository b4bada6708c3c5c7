// Package contracts wraps bound chain contracts with typed accessors for each
// product family.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/example/savings-ledger/internal/chain"
)

// Method names exposed by the QuickSave and SafeLock contracts.
const (
	MethodBalances          = "balances"
	MethodUserBalance       = "userBalance"
	MethodSavingHistory     = "getSavingHistory"
	MethodWithdrawalHistory = "getWithdrawalHistory"
)

// balanceAccessors are tried in order; the first one the ABI exposes is the primary accessor.
var balanceAccessors = []string{MethodBalances, MethodUserBalance}

// ErrNoBalanceAccessor means the contract exposes none of the known balance accessors.
var ErrNoBalanceAccessor = errors.New("no balance accessor")

// Record is one raw saving or withdrawal history entry.
type Record struct {
	Amount    *big.Int
	Timestamp int64 // seconds since epoch, 0 when absent
	TxID      string
}

// Savings is a QuickSave or SafeLock contract.
type Savings struct {
	contract chain.Contract
	reader   *chain.Reader
}

// OpenSavings checks for bytecode at address and binds the savings ABI.
func OpenSavings(ctx context.Context, reader *chain.Reader, address string) (*Savings, error) {
	c, err := reader.Open(ctx, address, chain.SavingsInterface)
	if err != nil {
		return nil, err
	}
	return &Savings{contract: c, reader: reader}, nil
}

func (s *Savings) Address() string { return s.contract.Address() }

// BalanceAccessor returns the primary balance method this contract exposes.
func (s *Savings) BalanceAccessor() (string, bool) {
	for _, m := range balanceAccessors {
		if s.contract.HasMethod(m) {
			return m, true
		}
	}
	return "", false
}

// PrimaryBalance reads the raw balance through the primary accessor.
func (s *Savings) PrimaryBalance(ctx context.Context, account string) (*big.Int, error) {
	method, ok := s.BalanceAccessor()
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.Address(), ErrNoBalanceAccessor)
	}

	out, err := s.reader.Try(ctx, s.contract, method, s.reader.CallTimeout(), account)
	if err != nil {
		return nil, err
	}
	v, err := chain.Output(out, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return chain.Uint(v)
}

// SavingHistory reads the account's deposit records.
func (s *Savings) SavingHistory(ctx context.Context, account string) ([]Record, error) {
	return s.records(ctx, MethodSavingHistory, account)
}

// WithdrawalHistory reads the account's withdrawal records.
func (s *Savings) WithdrawalHistory(ctx context.Context, account string) ([]Record, error) {
	return s.records(ctx, MethodWithdrawalHistory, account)
}

func (s *Savings) records(ctx context.Context, method, account string) ([]Record, error) {
	out, err := s.reader.Try(ctx, s.contract, method, s.reader.CallTimeout(), account)
	if err != nil {
		return nil, err
	}
	v, err := chain.Output(out, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	records, err := DecodeRecords(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return records, nil
}

// DecodeRecords decodes a tuple(amount, timestamp, txId)[] output.
// timestamp and txId are optional components.
func DecodeRecords(v any) ([]Record, error) {
	items, err := chain.List(v)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		tuple, err := chain.Tuple(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		raw, err := chain.Field(tuple, "amount")
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		amt, err := chain.Uint(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d amount: %w", i, err)
		}

		rec := Record{Amount: amt}
		if ts, ok := tuple["timestamp"]; ok {
			// Unreadable timestamps fall back to fetch time downstream.
			if n, err := chain.Int64(ts); err == nil {
				rec.Timestamp = n
			}
		}
		if id, ok := tuple["txId"]; ok {
			if s, err := chain.Text(id); err == nil {
				rec.TxID = s
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
