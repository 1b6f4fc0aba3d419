// Package core provides money parsing and handling utilities.
//
// This file contains the exact decimal amount type used by expenses and the
// helpers that parse it from user input and request bodies and format it
// for display.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact dollar amount. Fractional cents are kept as given.
type Money struct {
	d decimal.Decimal
}

// NewMoney parses a decimal string such as "12.50".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustMoney is NewMoney for literals known to be valid.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// ParseAmount parses an amount typed by a user.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and keeps
// every fractional digit. It does not check the sign; callers enforcing a
// positive amount do so themselves.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34, nil
//   ParseAmount("12,34")  -> 12.34, nil
//   ParseAmount("0.005")  -> 0.005, nil
//   ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(s)
}

// ParseAmountJSON coerces a raw JSON amount to a number. Absent, null,
// false and empty-string amounts decode to zero without error.
func ParseAmountJSON(raw json.RawMessage) (Money, error) {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false":
		return Money{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Money{}, ErrInvalidAmount
		}
		if strings.TrimSpace(s) == "" {
			return Money{}, nil
		}
		return NewMoney(s)
	}
	return NewMoney(string(raw))
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Float64 returns the amount as a float64 for chart payloads.
// Use Add for arithmetic to avoid floating-point drift.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Money) String() string {
	return m.d.String()
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	parsed, err := ParseAmountJSON(b)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FormatUSD formats the amount as US currency, e.g. "$1,234.56".
func FormatUSD(m Money) string {
	d := m.d.Round(2)
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	s := "$" + b.String() + "." + frac
	if neg {
		return "-" + s
	}
	return s
}
