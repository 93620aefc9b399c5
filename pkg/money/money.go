// Package money converts storefront decimal prices into ledger minor units.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultExponent = 2

// zeroDecimal lists ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true,
	"JPY": true, "KMF": true, "KRW": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// Exponent returns the number of minor-unit digits for a currency.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))] {
		return 0
	}
	return defaultExponent
}

// ToMinor parses a decimal amount such as "59.90" and returns it in minor
// units, rounding half away from zero. An empty amount is zero.
func ToMinor(amount, currency string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", amount)
	}
	minor := d.Shift(Exponent(currency)).Round(0)
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, fmt.Errorf("amount %q out of range", amount)
	}
	return minor.IntPart(), nil
}
