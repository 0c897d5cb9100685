package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is assumed when a token does not report its decimals
const DefaultDecimals = 18

// CalcTokenAmount converts a base-unit amount into whole tokens
func CalcTokenAmount(value string, decimals int) (decimal.Decimal, error) {
	if decimals == 0 {
		decimals = DefaultDecimals
	}
	v, err := ParseQuantity(value)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(v, 0).Shift(-int32(decimals)), nil
}

// CalcTokenValue converts a whole-token amount into base units, truncating
// anything below the smallest unit
func CalcTokenValue(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// ParseQuantity parses a base-unit quantity given either as 0x-prefixed hex
// or as a decimal string. An empty string is zero.
func ParseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v := new(big.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return v, nil
		}
		if _, ok := v.SetString(digits, 16); !ok {
			return nil, fmt.Errorf("invalid hex quantity %q", s)
		}
		return v, nil
	}
	if _, ok := v.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}

// ToPrecision formats d with the given number of significant digits
func ToPrecision(d decimal.Decimal, precision int) string {
	if d.IsZero() {
		return decimal.Zero.StringFixed(int32(precision - 1))
	}
	intDigits := len(d.Abs().Truncate(0).String())
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		// leading zeros after the point do not count as significant
		intDigits = 0
		for v := d.Abs(); v.LessThan(decimal.NewFromFloat(0.1)); v = v.Shift(1) {
			intDigits--
		}
	}
	places := precision - intDigits
	if places < 0 {
		places = 0
	}
	return d.StringFixed(int32(places))
}
