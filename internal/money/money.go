package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits every stored amount carries.
const Places = 2

var (
	// Tolerance is the largest difference still treated as equal.
	Tolerance = decimal.New(1, -Places)

	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Round rounds to two places, half-up. Amounts in the ledger are
// non-negative where rounding happens, so decimal's half-away-from-zero
// rounding is the same thing.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Equal reports whether a and b are within Tolerance of each other.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// IsZero reports whether d is within Tolerance of zero.
func IsZero(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(Tolerance)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}

	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}

	return b
}

// Sum adds every amount.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}

	return total
}

// Percent returns pct percent of d, rounded.
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return Round(d.Mul(pct).Div(hundred))
}

// Parse reads an amount written either as "1234.56" or in European form
// "1.234,56" and rounds it to two places.
func Parse(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}

	return Round(d), nil
}
