// Package money holds the decimal helpers shared by catalog, promotion and sales code.
// Postgres NUMERIC columns are selected as text and parsed here so rounding never
// passes through float64.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the zero amount.
var Zero = decimal.Zero

// Parse converts a NUMERIC text value. Empty input is zero.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return d, nil
}

// ParseNullable converts a nullable NUMERIC text value.
func ParseNullable(s *string) (*decimal.Decimal, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := Parse(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Round rounds half away from zero to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount with two decimals, e.g. "45.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NullableString renders an optional amount for a NUMERIC parameter.
func NullableString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
