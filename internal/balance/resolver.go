// Package balance resolves current savings balances, deriving them from
// history when the primary accessor is unavailable.
package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"github.com/example/savings-ledger/internal/chain"
	"github.com/example/savings-ledger/internal/contracts"
	"github.com/example/savings-ledger/pkg/amount"
	"github.com/example/savings-ledger/pkg/transaction"
)

var (
	ErrMissingAccount     = chain.ErrMissingAccount
	ErrUnsupportedProduct = errors.New("product has no account balance")
)

// Source is the balance capability of a savings contract.
type Source interface {
	PrimaryBalance(ctx context.Context, account string) (*big.Int, error)
	SavingHistory(ctx context.Context, account string) ([]contracts.Record, error)
	WithdrawalHistory(ctx context.Context, account string) ([]contracts.Record, error)
}

// Resolver resolves balances for the singleton savings products.
type Resolver struct {
	reader    *chain.Reader
	addresses map[transaction.Product]string
	log       zerolog.Logger
}

// NewResolver creates a Resolver. addresses maps each savings product to its contract.
func NewResolver(reader *chain.Reader, addresses map[transaction.Product]string, log zerolog.Logger) *Resolver {
	return &Resolver{
		reader:    reader,
		addresses: addresses,
		log:       log.With().Str("component", "balance_resolver").Logger(),
	}
}

// Balance returns account's current balance in product. Runtime failures
// resolve to zero; only a missing account or a product without a balance
// is an error.
func (r *Resolver) Balance(ctx context.Context, account string, product transaction.Product) (decimal.Decimal, error) {
	if account == "" {
		return decimal.Zero, ErrMissingAccount
	}
	if product != transaction.QuickSave && product != transaction.SafeLock {
		return decimal.Zero, fmt.Errorf("%s: %w", product, ErrUnsupportedProduct)
	}

	log := r.log.With().Str("account", account).Str("product", string(product)).Logger()

	src, err := contracts.OpenSavings(ctx, r.reader, r.addresses[product])
	if err != nil {
		log.Debug().Err(err).Msg("Contract unavailable, balance is zero")
		return decimal.Zero, nil
	}

	return Resolve(ctx, src, account, log), nil
}

// Balances resolves every savings product concurrently.
func (r *Resolver) Balances(ctx context.Context, account string) (map[transaction.Product]decimal.Decimal, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}

	bals := iter.Map(transaction.SavingsProducts, func(p *transaction.Product) decimal.Decimal {
		bal, _ := r.Balance(ctx, account, *p)
		return bal
	})

	out := make(map[transaction.Product]decimal.Decimal, len(bals))
	for i, p := range transaction.SavingsProducts {
		out[p] = bals[i]
	}
	return out, nil
}

// Resolve reads the primary balance and falls back to saved minus withdrawn.
func Resolve(ctx context.Context, src Source, account string, log zerolog.Logger) decimal.Decimal {
	raw, err := src.PrimaryBalance(ctx, account)
	if err == nil {
		return amount.Decode(raw)
	}
	log.Warn().Err(err).Msg("Primary balance read failed, deriving from history")

	derived, err := Derive(ctx, src, account)
	if err != nil {
		log.Warn().Err(err).Msg("Balance derivation failed, balance is zero")
		return decimal.Zero
	}
	return derived
}

// Derive computes sum(savings) - sum(withdrawals), clamped at zero.
func Derive(ctx context.Context, src Source, account string) (decimal.Decimal, error) {
	saves, err := src.SavingHistory(ctx, account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("saving history: %w", err)
	}
	withdrawals, err := src.WithdrawalHistory(ctx, account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("withdrawal history: %w", err)
	}

	bal := amount.Sum(raws(saves)...).Sub(amount.Sum(raws(withdrawals)...))
	if bal.IsNegative() {
		return decimal.Zero, nil
	}
	return bal, nil
}

func raws(records []contracts.Record) []*big.Int {
	out := make([]*big.Int, len(records))
	for i, rec := range records {
		out[i] = rec.Amount
	}
	return out
}
