// Package money converts decimal prices into integer smallest-unit amounts.
//
// Every settlement figure in the system passes through Currency.Total exactly
// once; the resulting int64 is what the ledger is paid and what the
// settlement record stores.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositive      = errors.New("value must be positive")
	ErrNotRepresentable = errors.New("value is not representable in smallest currency units")
	ErrOverflow         = errors.New("value exceeds int64 smallest-unit range")
	ErrInvalidScale     = errors.New("currency scale must be between 0 and 18")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Currency describes a settlement currency by its code and the number of
// decimal places in its smallest unit (2 for cents, 18 for wei).
type Currency struct {
	Code  string
	Scale int32
}

// NewCurrency validates and builds a Currency.
func NewCurrency(code string, scale int32) (Currency, error) {
	if scale < 0 || scale > 18 {
		return Currency{}, ErrInvalidScale
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Currency{}, errors.New("currency code is required")
	}
	return Currency{Code: code, Scale: scale}, nil
}

// ToMinor converts a positive decimal into smallest units. The value must be
// exact at the currency scale; 0.005 at scale 2 is rejected, never rounded.
func (c Currency) ToMinor(v decimal.Decimal) (int64, error) {
	if !v.IsPositive() {
		return 0, ErrNonPositive
	}
	shifted := v.Shift(c.Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s at scale %d", ErrNotRepresentable, v.String(), c.Scale)
	}
	if shifted.GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return shifted.IntPart(), nil
}

// FromMinor renders a smallest-unit amount back as a decimal.
func (c Currency) FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -c.Scale)
}

// Total computes amount x unitPrice in smallest units. The unit price is
// converted once; the product must itself be a whole number of units.
func (c Currency) Total(amount, unitPrice decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNonPositive
	}
	unitMinor, err := c.ToMinor(unitPrice)
	if err != nil {
		return 0, fmt.Errorf("unit price: %w", err)
	}
	total := amount.Mul(decimal.NewFromInt(unitMinor))
	if !total.IsInteger() {
		return 0, fmt.Errorf("%w: %s x %d", ErrNotRepresentable, amount.String(), unitMinor)
	}
	if total.GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return total.IntPart(), nil
}

// Format renders a smallest-unit amount with the currency's fixed precision.
func (c Currency) Format(minor int64) string {
	return c.FromMinor(minor).StringFixed(c.Scale) + " " + c.Code
}
