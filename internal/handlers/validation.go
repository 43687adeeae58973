package handlers

import (
	"errors"

	"github.com/shopspring/decimal"
)

var errInvalidAmount = errors.New("amount must be a positive whole number")

// parseCoins accepts whole positive amounts; 10, "10" and 10.0 are all 10.
func parseCoins(raw decimal.Decimal) (int64, error) {
	if raw.Exponent() < -18 || raw.Exponent() > 18 {
		return 0, errInvalidAmount
	}
	if !raw.IsInteger() || raw.LessThanOrEqual(decimal.Zero) || !raw.BigInt().IsInt64() {
		return 0, errInvalidAmount
	}
	return raw.IntPart(), nil
}
