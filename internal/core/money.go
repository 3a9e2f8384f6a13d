// Package core provides the budgeting domain types and the validation rules
// applied to them before they reach the record store.
//
// This file contains amount parsing. Amounts are decimal values with two
// fractional digits; parsing accepts both dot (12.34) and comma (12,34)
// decimal separators.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const amountPlaces = 2

// ParseAmount converts a user supplied decimal string into a positive amount.
//
// The value is rounded half-up to two decimal places. Signs, exponents,
// thousands separators and zero amounts are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseUnsigned(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseNonNegativeAmount is ParseAmount but accepts zero, as used for the
// amount already saved towards a goal.
func ParseNonNegativeAmount(s string) (decimal.Decimal, error) {
	return parseUnsigned(s)
}

func parseUnsigned(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(amountPlaces), nil
}
