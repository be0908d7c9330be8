// Package core provides the ledger domain types and the rules applied to them.
//
// This file contains money and interest-rate handling. Amounts are held as
// integer cents so repeated partial payments never drift; shopspring/decimal
// is used only to parse user input and to render JSON numbers.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents bounds parsed amounts so cents arithmetic never overflows int64.
var maxCents = decimal.New(1<<62, 0)

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values are rejected; zero is accepted and left to the caller's validation.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,34")  -> 1234 cents
//	ParseMoney("12.345") -> 1235 cents (rounds up)
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	m, err := parseCents(s)
	if err != nil {
		return Money{}, err
	}
	if m.Cents < 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

func parseCents(s string) (Money, error) {
	d, err := parseBounded(s, maxMoneyDigits)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

const (
	// maxInputLen caps the text handed to the decimal parser.
	maxInputLen = 40
	// maxFracDigits bounds the scale so rounding never rescales a huge value.
	maxFracDigits = 30
	// maxMoneyDigits keeps whole units below 10^17, inside maxCents after Shift.
	maxMoneyDigits = 17
	// maxRateDigits matches NUMERIC(9, 4): rates stay below 100000.
	maxRateDigits = 5
)

var errOutOfRange = errors.New("number out of range")

// parseBounded parses s and rejects values whose magnitude or scale would
// make rescaling expensive. Only exponent and digit count are inspected, so
// inputs like 1e100000000 fail without materialising the number.
func parseBounded(s string, maxIntDigits int) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || len(s) > maxInputLen {
		return decimal.Decimal{}, errOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	exp := int(d.Exponent())
	if exp < -maxFracDigits || d.NumDigits()+exp > maxIntDigits {
		return decimal.Decimal{}, errOutOfRange
	}
	return d, nil
}

// NewMoneyFromCents is a convenience constructor used by storage and tests.
func NewMoneyFromCents(cents int64) Money {
	return Money{Cents: cents}
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders m with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// MarshalJSON renders a JSON number with at most two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = Money{}
		return nil
	}
	v, err := parseCents(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Rate is an annual interest rate in percent, e.g. 5.25.
type Rate struct {
	decimal.Decimal
}

// ErrInvalidRate is returned for malformed or negative rates.
var ErrInvalidRate = errors.New("invalid interest rate")

// maxRate is the first rate the rate column cannot hold.
var maxRate = decimal.New(100000, 0)

// ParseRate parses a non-negative rate below 100000, keeping at most four
// fractional digits.
func ParseRate(s string) (Rate, error) {
	d, err := parseBounded(s, maxRateDigits)
	if err != nil || d.IsNegative() {
		return Rate{}, ErrInvalidRate
	}
	d = d.Round(4)
	if d.GreaterThanOrEqual(maxRate) {
		return Rate{}, ErrInvalidRate
	}
	return Rate{Decimal: d}, nil
}

// MustRate is ParseRate for literals known to be valid.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

// MarshalJSON renders the rate as a bare JSON number.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.Decimal.String()), nil
}

// Equal reports whether two rates hold the same value.
func (r Rate) Equal(o Rate) bool {
	return r.Decimal.Equal(o.Decimal)
}
