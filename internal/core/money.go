// Package core provides money parsing and handling utilities.
//
// Amounts are arbitrary-precision decimals so that values such as 75.50 are
// stored, compared and exported without float rounding.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a positive currency amount. There is a single implicit currency.
type Money struct {
	Amount decimal.Decimal
}

func NewMoney(amount decimal.Decimal) Money {
	return Money{Amount: amount}
}

// MustMoney parses s and panics on error. Intended for fixtures and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a user-entered amount to Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// zero and anything that is not a plain decimal number are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrNonPositiveAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrNonPositiveAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrNonPositiveAmount
	}
	m := Money{Amount: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

// String returns the shortest decimal form: 75.50 renders as "75.5".
func (m Money) String() string {
	return m.Amount.String()
}

// Fixed returns the amount with exactly two fraction digits.
func (m Money) Fixed() string {
	return m.Amount.StringFixed(2)
}

// Float64 is for display code only.
func (m Money) Float64() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Amount.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Amount.UnmarshalJSON(data)
}
