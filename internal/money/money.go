// Package money holds the fixed-point amount and currency types shared by the
// ledger. Every amount is an integer count of the currency's smallest unit
// (kobo for NGN, cents for USD); there is no floating point anywhere on the
// money path.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidCurrency is returned for codes that are not three ASCII letters.
	ErrInvalidCurrency = errors.New("currency must be a three letter ISO 4217 code")
)

// Currency is an upper-case ISO 4217 code.
type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
	GHS Currency = "GHS"
	KES Currency = "KES"
	ZAR Currency = "ZAR"
)

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[Currency]bool{
	"JPY": true,
	"KRW": true,
	"XAF": true,
	"XOF": true,
	"UGX": true,
	"RWF": true,
}

// ParseCurrency normalises s and validates its shape. An empty string yields
// fallback.
func ParseCurrency(s string, fallback Currency) (Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback, nil
	}
	if len(s) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return Currency(s), nil
}

// Exponent is the number of minor-unit digits for the currency.
func (c Currency) Exponent() int32 {
	if zeroDecimal[c] {
		return 0
	}
	return 2
}

func (c Currency) String() string { return string(c) }

// Amount is a count of a currency's smallest unit.
type Amount int64

// Validate reports ErrInvalidAmount unless a is strictly positive.
func (a Amount) Validate() error {
	if a <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Major converts the amount into major units for display.
func (a Amount) Major(c Currency) decimal.Decimal {
	return decimal.New(int64(a), -c.Exponent())
}

// Format renders the amount in major units with the currency's precision,
// e.g. 150050 NGN -> "1500.50 NGN".
func (a Amount) Format(c Currency) string {
	return fmt.Sprintf("%s %s", a.Major(c).StringFixed(c.Exponent()), c)
}
