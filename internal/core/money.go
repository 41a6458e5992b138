// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point cents. Decimal strings coming from users or from the
// backend are parsed with shopspring/decimal and rounded half-up to two places,
// so every comparison in the ledger is exact.
package core

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Exponent bounds for amounts. Anything outside cannot be a real fee and
// would make rounding arbitrarily expensive.
const (
	minExponent = -10
	maxExponent = 18
)

// Cents builds a Money from an integer number of cents.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseDecimalToCents converts a user-entered decimal string to positive cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Signs are rejected, as are zero
// amounts and values that do not fit in int64 cents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	m, err := ParseMoney(s)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// ParseMoney parses a signed decimal amount. Comma separators are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return Money{}, ErrInvalidAmount
	}
	shifted := d.Round(2).Shift(2)
	if shifted.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: shifted.IntPart()}, nil
}

// Decimal returns the amount as a decimal with two places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// Sign returns -1, 0 or 1.
func (m Money) Sign() int {
	switch {
	case m.Cents < 0:
		return -1
	case m.Cents > 0:
		return 1
	}
	return 0
}

// Cmp compares m and o the way strings.Compare does.
func (m Money) Cmp(o Money) int {
	return cmp.Compare(m.Cents, o.Cents)
}

// String renders the amount as a plain decimal, e.g. "-12.50".
func (m Money) String() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON emits a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Exponent notation
// is rejected, as in ParseMoney.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("decode amount %s: %w", s, err)
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			*m = Money{}
			return nil
		}
	}
	if strings.ContainsAny(s, "eE") {
		return fmt.Errorf("decode amount %q: %w", s, ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", s, ErrInvalidAmount)
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", s, err)
	}
	*m = parsed
	return nil
}

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
