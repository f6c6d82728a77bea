// Package core provides money parsing and handling utilities.
//
// Amounts are stored as integer cents. Parsing and formatting go through
// shopspring/decimal so no float ever touches a stored value.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, with at
// most one separator and at most two fractional digits, so thousands
// notation such as "1,234" is rejected rather than misread. Negative values
// are rejected; zero is allowed so budgets can be cleared.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,3")   -> 1230
//	ParseMoney("100")    -> 10000
//	ParseMoney("1,234")  -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsFunc(s, notDigitOrDot) || strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	if _, frac, ok := strings.Cut(s, "."); ok && len(frac) > 2 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d), nil
}

func notDigitOrDot(r rune) bool {
	return (r < '0' || r > '9') && r != '.'
}

// FromDecimal rounds d half-up to two places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// Cents builds Money from an integer number of cents.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// Validate enforces a strictly positive transaction amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two fractional digits, e.g. "100.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the value as float64 for JSON output only.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// MarshalJSON emits a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ErrInvalidAmount
	}
	*m = FromDecimal(d)
	return nil
}
