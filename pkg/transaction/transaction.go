package transaction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction relative to the wallet
type Kind string

const (
	Save     Kind = "save"
	Withdraw Kind = "withdraw"
)

// Product identifies one of the savings mechanisms
type Product string

const (
	QuickSave   Product = "quicksave"
	SafeLock    Product = "safelock"
	GroupCircle Product = "circle"
)

// SavingsProducts are the account-global singleton products
var SavingsProducts = []Product{QuickSave, SafeLock}

// ParseProduct maps user input onto a Product
func ParseProduct(s string) (Product, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quicksave", "quick-save", "quick_save":
		return QuickSave, nil
	case "safelock", "safe-lock", "safe_lock":
		return SafeLock, nil
	case "circle", "adashe", "groupcircle", "group-circle":
		return GroupCircle, nil
	}
	return "", fmt.Errorf("unknown product %q", s)
}

// Label is the human-facing name used in From/To fields
func (p Product) Label() string {
	switch p {
	case QuickSave:
		return "QuickSave"
	case SafeLock:
		return "SafeLock"
	case GroupCircle:
		return "Adashe"
	}
	return string(p)
}

// WalletLabel is the From/To label for the account's own wallet
const WalletLabel = "Wallet"

// Transaction represents a single normalized savings transaction.
// Week holds the zero-based on-chain cycle index and is only set for circle rows.
type Transaction struct {
	ID              string          `json:"id"`
	Kind            Kind            `json:"type"`
	Product         Product         `json:"product"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Week            *int            `json:"week,omitempty"`
	Label           string          `json:"label,omitempty"`
	ContractAddress string          `json:"contractAddress,omitempty"`
	TransactionID   string          `json:"transactionId,omitempty"`
}

// DisplayWeek maps a zero-based on-chain week to the one-based week shown to users.
// Nil and negative inputs have no display week.
func DisplayWeek(onChain *int) *int {
	if onChain == nil || *onChain < 0 {
		return nil
	}
	w := *onChain + 1
	return &w
}

// DisplayWeek returns the user-facing week of a circle transaction
func (t Transaction) DisplayWeek() *int {
	return DisplayWeek(t.Week)
}

// List holds a collection of transactions
type List struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

// Add appends transactions to the list
func (l *List) Add(txs ...Transaction) {
	l.Transactions = append(l.Transactions, txs...)
	l.Total = len(l.Transactions)
}

// SortByDateDesc orders the list most recent first, keeping insertion order on ties
func (l *List) SortByDateDesc() {
	SortByDateDesc(l.Transactions)
}

// ByKind returns all transactions of the given kind
func (l *List) ByKind(kind Kind) []Transaction {
	var filtered []Transaction
	for _, t := range l.Transactions {
		if t.Kind == kind {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// Totals summarizes saved and withdrawn amounts
type Totals struct {
	Saved     decimal.Decimal `json:"saved"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
	Net       decimal.Decimal `json:"net"`
}

// Totals sums the list by kind
func (l *List) Totals() Totals {
	tot := Totals{
		Saved:     sumAmounts(l.ByKind(Save)),
		Withdrawn: sumAmounts(l.ByKind(Withdraw)),
	}
	tot.Net = tot.Saved.Sub(tot.Withdrawn)
	return tot
}

func sumAmounts(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// SortByDateDesc stable-sorts txs most recent first
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

// Merge flattens several result sets, preserving their order, and sorts the
// combined slice most recent first. The result is never nil.
func Merge(sets ...[]Transaction) []Transaction {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	merged := make([]Transaction, 0, n)
	for _, s := range sets {
		merged = append(merged, s...)
	}
	SortByDateDesc(merged)
	return merged
}
