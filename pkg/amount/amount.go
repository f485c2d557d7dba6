// Package amount holds the decimal helpers shared by the balance, banking and
// pooling code. All quantities are shopspring decimals so that conservation
// checks can use exact equality.
package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity.
var Zero = decimal.Zero

// Parse parses a decimal amount from a string such as "274044000" or "-500000.25".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %w", err)
	}
	return d, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// PercentDiff returns (value/base - 1) * 100 rounded to places.
func PercentDiff(value, base decimal.Decimal, places int32) (decimal.Decimal, error) {
	if base.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("division by zero")
	}
	return value.Div(base).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(places), nil
}

// LogPlaces is the precision of amounts written to logs.
const LogPlaces = 2

// Format renders d with a fixed number of decimal places.
func Format(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
