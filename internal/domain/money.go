package domain

import "github.com/shopspring/decimal"

// ParseAmount converts a decimal amount string (as received on the wire,
// e.g. "20.00") into cents. Amounts with more than two fractional digits
// cannot be represented in the ledger and are rejected with
// ErrInvalidAmount. Sign validation is left to the caller: withdrawals and
// top-ups require a positive amount, balances may be provisioned at zero.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, ErrInvalidAmount
	}
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatCents renders cents as a fixed two-decimal string, e.g. -2000 as
// "-20.00". Used for every amount leaving the service.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
