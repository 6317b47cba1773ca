package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// maxFraction caps the fractional digits accepted from user input.
	maxFraction = 18
	// maxDigits is the digit count of the largest uint256.
	maxDigits = 78
)

// ParseAmount converts a decimal string into smallest units of a token with
// the given precision. Digits beyond the token's precision (or 18) are
// truncated. Empty input parses to zero.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return new(big.Int), nil
	}
	// integer digits of the amount once scaled to smallest units
	digits := int64(d.NumDigits()) + int64(d.Exponent()) + int64(decimals)
	if digits > maxDigits {
		return nil, fmt.Errorf("%w: %q exceeds uint256", ErrInvalidAmount, s)
	}
	if digits <= 0 {
		return new(big.Int), nil
	}
	places := int32(decimals)
	if places > maxFraction {
		places = maxFraction
	}
	v := d.Truncate(places).Shift(int32(decimals)).BigInt()
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %q exceeds uint256", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatAmount renders v smallest units as a decimal string without trailing
// zeros.
func FormatAmount(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// FormatFixed renders v with exactly places fractional digits, rounding half
// away from zero.
func FormatFixed(v *big.Int, decimals uint8, places int32) string {
	if v == nil {
		v = new(big.Int)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).StringFixed(places)
}
