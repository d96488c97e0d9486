package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the rounding tolerance used when comparing aggregate
// debit and credit totals: 0.01 of a currency unit.
var DefaultTolerance = decimal.New(1, -2)

// VND builds a decimal amount from whole dong. Convenience for constants
// and tests.
func VND(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// WithinTolerance reports whether a and b differ by no more than tol.
// The ledger validator treats amounts inside the tolerance as equal rather
// than inferring stricter semantics.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// ValidAmount rejects zero, negative and NaN-ish amounts before any write.
func ValidAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	return nil
}

// FormatVND renders an amount the way receipts show it, e.g. "500000 VND".
func FormatVND(amount decimal.Decimal) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(0), DefaultCurrency)
}
