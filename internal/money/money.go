// Package money holds cent-precision amounts read from receipts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value with two decimal places of precision.
// It encodes to JSON as a plain number (5.38, not "5.38").
type Amount struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{Decimal: decimal.Zero}

// New wraps a decimal, rounding it to cents.
func New(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(2)}
}

// MustParse parses s and panics on failure. Intended for tests and static tables.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse reads a currency-shaped string such as "$1,234.56" or "12.50".
func Parse(s string) (Amount, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return New(d), nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Sub(b.Decimal)}
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.Decimal.LessThan(b.Decimal)
}

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.Decimal.GreaterThan(b.Decimal)
}

// NonNegative clamps negative amounts to zero.
func (a Amount) NonNegative() Amount {
	if a.IsNegative() {
		return Zero
	}
	return a
}

// Sum adds up all amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// String renders the amount with exactly two decimals.
func (a Amount) String() string {
	return a.StringFixed(2)
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = New(d)
	return nil
}
