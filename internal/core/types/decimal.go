// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a stock quantity. Quantities carry up to 4 fractional digits
// (NUMERIC(15,4) in the database).
type Quantity = decimal.Decimal

const (
	// PriceScale is the number of fractional digits kept for unit prices.
	PriceScale int32 = 4
	// AmountScale is the number of fractional digits kept for amounts.
	AmountScale int32 = 2
	// QuantityScale is the number of fractional digits kept for quantities.
	QuantityScale int32 = 4
)

// MustDecimal parses s, panics on error.
// Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDecimal parses s, treating an empty string as zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// RoundPrice rounds a unit price half away from zero to PriceScale digits.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PriceScale)
}

// RoundAmount rounds an amount half away from zero to AmountScale digits.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// Canonical formats d with exactly QuantityScale fractional digits.
// Used wherever decimals feed a digest, so 3, 3.0 and 3.0000 hash alike.
func Canonical(d decimal.Decimal) string {
	return d.StringFixed(QuantityScale)
}

// WeightedAverage returns (prevQty*prevPrice + addAmount) / (prevQty + addQty)
// rounded to PriceScale. When the resulting quantity is not positive the
// previous price is kept and ok is false.
func WeightedAverage(prevQty, prevPrice, addQty, addAmount decimal.Decimal) (price decimal.Decimal, ok bool) {
	denominator := prevQty.Add(addQty)
	if !denominator.IsPositive() {
		return prevPrice, false
	}
	numerator := prevQty.Mul(prevPrice).Add(addAmount)
	return RoundPrice(numerator.Div(denominator)), true
}
