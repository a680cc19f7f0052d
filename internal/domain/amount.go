package domain

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount accepts a JSON number or numeric string. Absent, null and
// non-numeric values are validation errors; so is anything not strictly positive.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, NewValidationError("amount is required")
	}

	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, NewValidationError("amount must be a number")
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount must be greater than zero")
	}
	return nil
}

// ToMinorUnits converts major units to cents, rounding half away from zero on
// the exact decimal value (19.995 -> 2000).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ToTransferValue renders amount as the two-decimal string used by ACH network transfers.
func ToTransferValue(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
