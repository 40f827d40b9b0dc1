/**
 * @description
 * Fixed-point money handling. Every balance and transfer amount is stored as an int64
 * count of minor units (centavos). Text input from clients is parsed with shopspring/decimal
 * so that values like "0.1" never pass through a float.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Arbitrary-precision decimal parsing and formatting.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of fractional digits carried by Money.
const MinorUnitDigits = 2

var (
	ErrAmountEmpty      = errors.New("amount is empty")
	ErrAmountMalformed  = errors.New("amount is not a number")
	ErrAmountPrecision  = errors.New("amount has more than two decimal places")
	ErrAmountOutOfRange = errors.New("amount is out of range")
)

// Exponent bounds checked before any rescaling. Rescaling to exponent 0 costs a big.Int of
// 10^|exp| digits, so "1e-20000000" must be refused from the parsed exponent alone.
const (
	minAmountExponent = -MinorUnitDigits - 18
	maxAmountExponent = 18
)

var (
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
	minMinorUnits = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount in minor units.
type Money int64

// ParseMoney converts user text such as "150", "150.5" or "1e3" into minor units.
func ParseMoney(text string) (Money, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, ErrAmountEmpty
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrAmountMalformed, trimmed)
	}
	if value.IsZero() {
		return 0, nil
	}
	if exp := value.Exponent(); exp < minAmountExponent {
		return 0, ErrAmountPrecision
	} else if exp > maxAmountExponent {
		return 0, ErrAmountOutOfRange
	}

	minor := value.Shift(MinorUnitDigits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	if minor.GreaterThan(maxMinorUnits) || minor.LessThan(minMinorUnits) {
		return 0, ErrAmountOutOfRange
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitDigits)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitDigits)
}

// MarshalJSON writes money as a decimal string so clients never see float drift.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var text AmountText
	if err := text.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AmountText keeps the raw amount exactly as the client typed it. Validation happens later in
// the transfer authorizer so that an empty or malformed amount yields the right rejection.
type AmountText string

func (a *AmountText) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "" || raw == "null":
		*a = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountText(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a string or number: %w", err)
		}
		*a = AmountText(n.String())
	}
	return nil
}
