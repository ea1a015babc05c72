// Package money converts between decimal major-unit amounts and the integer
// minor units persisted by the ledger.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotPositive = errors.New("amount must be greater than zero")
	ErrTooPrecise  = errors.New("amount has more than two decimal places")
	ErrOutOfRange  = errors.New("amount is out of range")

	hundred       = decimal.NewFromInt(100)
	maxMinorUnits = decimal.NewFromInt(100_000_000_00)
)

// ToMinorUnits converts 700.50 into 70050. Amounts must be positive and carry
// at most two decimal places.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNotPositive
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if cents.GreaterThan(maxMinorUnits) {
		return 0, ErrOutOfRange
	}
	return cents.IntPart(), nil
}

// FromMinorUnits converts 70050 back into 700.5.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as a fixed two-decimal string, e.g. "700.50".
func Format(cents int64) string {
	return FromMinorUnits(cents).StringFixed(2)
}
