// Package history fetches, normalizes and merges transaction history across
// an account's savings products and group circles.
//
// Circle history is reconstructed from current contribution progress rather
// than read from a ledger, so circle dates are approximate.
package history

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/savings-ledger/internal/chain"
	"github.com/example/savings-ledger/internal/contracts"
	"github.com/example/savings-ledger/pkg/amount"
	"github.com/example/savings-ledger/pkg/transaction"
)

const week = 7 * 24 * time.Hour

// maxCircleWeeks bounds reconstructed contributions; larger progress values are treated as corrupt.
const maxCircleWeeks = 1040

// circleNamespace seeds the UUIDv5 ids of reconstructed circle transactions.
var circleNamespace = uuid.MustParse("5b0f2c1e-7c3a-4d8e-9f61-2a4b6c8d0e13")

// Fetcher reads one contract's history and normalizes it.
type Fetcher struct {
	reader *chain.Reader
	now    func() time.Time
	log    zerolog.Logger
}

// NewFetcher creates a Fetcher. A nil now uses time.Now.
func NewFetcher(reader *chain.Reader, now func() time.Time, log zerolog.Logger) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		reader: reader,
		now:    now,
		log:    log.With().Str("component", "history_fetcher").Logger(),
	}
}

// Savings returns the QuickSave or SafeLock history held at address.
// Any failure yields an empty list.
func (f *Fetcher) Savings(ctx context.Context, account string, product transaction.Product, address string) []transaction.Transaction {
	log := f.log.With().Str("account", account).Str("contract", address).Str("product", string(product)).Logger()

	src, err := contracts.OpenSavings(ctx, f.reader, address)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping contract")
		return []transaction.Transaction{}
	}

	saves, err := src.SavingHistory(ctx, account)
	if err != nil {
		log.Warn().Err(err).Msg("Saving history unavailable")
		return []transaction.Transaction{}
	}
	withdrawals, err := src.WithdrawalHistory(ctx, account)
	if err != nil {
		log.Warn().Err(err).Msg("Withdrawal history unavailable")
		return []transaction.Transaction{}
	}

	fetchedAt := f.now()
	txs := make([]transaction.Transaction, 0, len(saves)+len(withdrawals))
	for i, rec := range saves {
		txs = append(txs, savingsTx(rec, transaction.Save, product, address, fetchedAt, i))
	}
	for i, rec := range withdrawals {
		txs = append(txs, savingsTx(rec, transaction.Withdraw, product, address, fetchedAt, i))
	}
	return txs
}

func savingsTx(rec contracts.Record, kind transaction.Kind, product transaction.Product, address string, fetchedAt time.Time, index int) transaction.Transaction {
	tx := transaction.Transaction{
		Kind:            kind,
		Product:         product,
		Amount:          amount.Decode(rec.Amount),
		Date:            fetchedAt,
		ContractAddress: address,
	}
	if rec.Timestamp > 0 {
		tx.Date = time.Unix(rec.Timestamp, 0).UTC()
	}

	if kind == transaction.Save {
		tx.From, tx.To = transaction.WalletLabel, product.Label()
	} else {
		tx.From, tx.To = product.Label(), transaction.WalletLabel
	}

	if rec.TxID != "" && !chain.IsZeroHex(rec.TxID) {
		tx.ID = rec.TxID
		tx.TransactionID = rec.TxID
	} else {
		tx.ID = FallbackID(kind, address, fetchedAt, index)
	}
	return tx
}

// FallbackID builds <kind>-<addressPrefix>-<fetchUnix>-<index> for records
// without an on-chain id.
func FallbackID(kind transaction.Kind, address string, fetchedAt time.Time, index int) string {
	prefix := address
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s-%s-%d-%d", kind, strings.ToLower(prefix), fetchedAt.Unix(), index)
}

// Circle reconstructs account's contribution and payout history in the circle
// at address. Any failure other than missing circle details yields an empty list.
func (f *Fetcher) Circle(ctx context.Context, account, address string) []transaction.Transaction {
	log := f.log.With().Str("account", account).Str("contract", address).Str("product", string(transaction.GroupCircle)).Logger()

	circle, err := contracts.OpenCircle(ctx, f.reader, address)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping circle")
		return []transaction.Transaction{}
	}

	progress, err := circle.Progress(ctx, account)
	if err != nil {
		log.Warn().Err(err).Msg("Contribution progress unavailable")
		return []transaction.Transaction{}
	}
	if progress.ContributedWeeks > maxCircleWeeks {
		log.Warn().Int64("weeks", progress.ContributedWeeks).Msg("Implausible contribution progress")
		return []transaction.Transaction{}
	}

	name := ""
	weekly := new(big.Int)
	details, err := circle.Details(ctx)
	switch {
	case err == nil:
		name = details.Name
		weekly = details.WeeklyContribution
	case progress.ContributedWeeks > 0:
		log.Debug().Err(err).Msg("Circle details unavailable, averaging contributions")
		weekly = new(big.Int).Div(progress.TotalContribution, big.NewInt(progress.ContributedWeeks))
	default:
		log.Warn().Err(err).Msg("Circle details unavailable and nothing contributed")
		return []transaction.Transaction{}
	}
	if name == "" {
		name = transaction.GroupCircle.Label()
	}

	currentWeek, err := circle.CurrentWeek(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Current week unavailable")
		return []transaction.Transaction{}
	}
	members, err := circle.Members(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Member list unavailable")
		return []transaction.Transaction{}
	}
	if details.MaxMembers > 0 && int64(len(members)) > details.MaxMembers {
		log.Warn().Int("members", len(members)).Int64("max_members", details.MaxMembers).Msg("Member list exceeds circle capacity")
		return []transaction.Transaction{}
	}

	fetchedAt := f.now()
	weeklyAmount := amount.Decode(weekly)

	txs := make([]transaction.Transaction, 0, progress.ContributedWeeks+1)
	for w := int64(1); w <= progress.ContributedWeeks; w++ {
		onChain := int(w - 1)
		txs = append(txs, transaction.Transaction{
			ID:              circleID(address, account, transaction.Save, onChain),
			Kind:            transaction.Save,
			Product:         transaction.GroupCircle,
			From:            transaction.WalletLabel,
			To:              name,
			Amount:          weeklyAmount,
			Date:            fetchedAt.Add(-time.Duration(progress.ContributedWeeks-w) * week),
			Week:            &onChain,
			Label:           fmt.Sprintf("Week %d", w),
			ContractAddress: address,
		})
	}

	index := memberIndex(members, account)
	if index >= 0 && currentWeek > int64(index) {
		payoutWeek := index
		txs = append(txs, transaction.Transaction{
			ID:              circleID(address, account, transaction.Withdraw, payoutWeek),
			Kind:            transaction.Withdraw,
			Product:         transaction.GroupCircle,
			From:            name,
			To:              transaction.WalletLabel,
			Amount:          weeklyAmount.Mul(decimal.NewFromInt(int64(len(members)))),
			Date:            fetchedAt.Add(-time.Duration(currentWeek-int64(index)-1) * week),
			Week:            &payoutWeek,
			Label:           fmt.Sprintf("Week %d", payoutWeek+1),
			ContractAddress: address,
		})
	}
	return txs
}

func memberIndex(members []string, account string) int {
	for i, m := range members {
		if chain.SameAddress(m, account) {
			return i
		}
	}
	return -1
}

// circleID is stable across fetches of the same circle, account and week.
func circleID(circle, account string, kind transaction.Kind, onChainWeek int) string {
	key := fmt.Sprintf("%s|%s|%s|%d", strings.ToLower(circle), strings.ToLower(account), kind, onChainWeek)
	return uuid.NewSHA1(circleNamespace, []byte(key)).String()
}
