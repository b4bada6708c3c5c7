// Package amount converts between on-chain fixed-point integers and decimal
// token amounts.
package amount

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional places used by the USD-pegged token.
const Decimals = 6

// Decode converts a raw on-chain integer into a decimal amount.
// A nil raw value decodes to zero.
func Decode(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -Decimals)
}

// Encode converts a decimal amount back into its raw on-chain integer.
// Digits beyond the sixth fractional place are truncated.
func Encode(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).Truncate(0).BigInt()
}

// Sum decodes and adds a set of raw values.
func Sum(raws ...*big.Int) decimal.Decimal {
	total := decimal.Zero
	for _, r := range raws {
		total = total.Add(Decode(r))
	}
	return total
}
