/*
Package generic holds the date arithmetic, amounts and error taxonomy shared
by the recurring-obligation generator, the reminder engine and the leave
validator.

KEY CONCEPTS:
  - TimePoint: a calendar date (time.go)
  - Frequency: Monthly / Quarterly / Annually and Advance (frequency.go)
  - Period:    inclusive date range (period.go)
  - Amounts:   decimal.Decimal, never float64

DESIGN PRINCIPLES:
  1. Purity: nothing here reads the clock except Today(), used by callers only
  2. Precision: money uses decimal.Decimal to avoid floating-point errors
  3. Closed enums: parsing fails loudly instead of defaulting
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d)
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals, the way every message
// and export shows money.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
