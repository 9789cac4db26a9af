package money

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Parse converts a wire-format decimal string into an integer-valued amount.
// Monetary values travel as strings so no client-side float ever touches them.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsInteger() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePositive is Parse with a strictly-positive requirement.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MulDivFloor computes floor(a * b / c) over integer-valued decimals using
// big.Int, so proportional payouts never pick up floating-point drift and the
// sum of floored shares can never exceed the divisible pool.
// Returns zero when c is not positive.
func MulDivFloor(a, b, c decimal.Decimal) decimal.Decimal {
	if !c.IsPositive() {
		return decimal.Zero
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q := new(big.Int).Quo(num, c.BigInt())
	return decimal.NewFromBigInt(q, 0)
}

// Percent returns floor(amount * pct / 100).
func Percent(amount decimal.Decimal, pct int64) decimal.Decimal {
	return MulDivFloor(amount, decimal.NewFromInt(pct), decimal.NewFromInt(100))
}
