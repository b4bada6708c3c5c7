package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"github.com/example/savings-ledger/internal/chain"
	"github.com/example/savings-ledger/internal/contracts"
	"github.com/example/savings-ledger/pkg/transaction"
)

var (
	ErrMissingAccount = chain.ErrMissingAccount
	ErrInvalidCircle  = errors.New("invalid circle address")
)

// DefaultConcurrency bounds how many contracts are read at once.
const DefaultConcurrency = 8

// Addresses locates the singleton products and the circle factory.
type Addresses struct {
	QuickSave     string
	SafeLock      string
	CircleFactory string
}

func (a Addresses) savings(p transaction.Product) string {
	switch p {
	case transaction.QuickSave:
		return a.QuickSave
	case transaction.SafeLock:
		return a.SafeLock
	}
	return ""
}

// source is one contract to fetch history from.
type source struct {
	product transaction.Product
	address string
}

// Aggregator merges history across every contract relevant to an account.
// It holds no mutable state; overlapping calls are independent.
type Aggregator struct {
	fetcher     *Fetcher
	reader      *chain.Reader
	addresses   Addresses
	concurrency int
	log         zerolog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(reader *chain.Reader, addresses Addresses, now func() time.Time, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		fetcher:     NewFetcher(reader, now, log),
		reader:      reader,
		addresses:   addresses,
		concurrency: DefaultConcurrency,
		log:         log.With().Str("component", "history_aggregator").Logger(),
	}
}

// History returns account's QuickSave, SafeLock and circle history, most recent first.
func (a *Aggregator) History(ctx context.Context, account string) ([]transaction.Transaction, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}

	sources := []source{
		{product: transaction.QuickSave, address: a.addresses.QuickSave},
		{product: transaction.SafeLock, address: a.addresses.SafeLock},
	}
	for _, circle := range a.Circles(ctx, account) {
		sources = append(sources, source{product: transaction.GroupCircle, address: circle})
	}

	return a.fanOut(ctx, account, sources), nil
}

// ProductHistory returns account's history for a single product. For
// GroupCircle it covers every circle the account belongs to.
func (a *Aggregator) ProductHistory(ctx context.Context, account string, product transaction.Product) ([]transaction.Transaction, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}

	var sources []source
	switch product {
	case transaction.QuickSave, transaction.SafeLock:
		sources = []source{{product: product, address: a.addresses.savings(product)}}
	case transaction.GroupCircle:
		for _, circle := range a.Circles(ctx, account) {
			sources = append(sources, source{product: transaction.GroupCircle, address: circle})
		}
	default:
		return nil, fmt.Errorf("unknown product %q", product)
	}

	return a.fanOut(ctx, account, sources), nil
}

// CircleHistory returns account's history in one circle, most recent first.
func (a *Aggregator) CircleHistory(ctx context.Context, account, circle string) ([]transaction.Transaction, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}
	if !chain.IsAddress(circle) {
		return nil, fmt.Errorf("%q: %w", circle, ErrInvalidCircle)
	}

	return transaction.Merge(a.fetcher.Circle(ctx, account, circle)), nil
}

// Circles discovers the circles account belongs to. Discovery failures yield
// no circles.
func (a *Aggregator) Circles(ctx context.Context, account string) []string {
	factory, err := contracts.OpenFactory(ctx, a.reader, a.addresses.CircleFactory, a.log)
	if err != nil {
		a.log.Debug().Err(err).Msg("Circle factory unavailable")
		return nil
	}

	return factory.Circles(ctx, account)
}

func (a *Aggregator) fanOut(ctx context.Context, account string, sources []source) []transaction.Transaction {
	mapper := iter.Mapper[source, []transaction.Transaction]{MaxGoroutines: a.concurrency}
	results := mapper.Map(sources, func(s *source) []transaction.Transaction {
		if s.product == transaction.GroupCircle {
			return a.fetcher.Circle(ctx, account, s.address)
		}
		return a.fetcher.Savings(ctx, account, s.product, s.address)
	})

	merged := transaction.Merge(results...)
	a.log.Debug().
		Str("account", account).
		Int("contracts", len(sources)).
		Int("transactions", len(merged)).
		Msg("History aggregated")
	return merged
}
