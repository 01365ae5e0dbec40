// Package decimal wraps shopspring/decimal in a narrower type so that every
// rounding decision in the engine is explicit. Prices round HALF_UP to the
// venue's tick size; quantities round FLOOR to the venue's lot size. Nothing
// in this codebase compares money with binary floats.
package decimal

import (
	"fmt"

	shopspring "github.com/shopspring/decimal"
)

// Decimal is a fixed-precision number. The zero value is zero.
type Decimal struct {
	d shopspring.Decimal
}

// RoundingMode selects how a Decimal is snapped to a tick/lot size.
type RoundingMode int

const (
	HalfUp RoundingMode = iota
	Floor
)

// Zero is the additive identity.
var Zero = Decimal{}

// Parse reads a decimal from its string form (as found on the wire: "0.015",
// "123", "-4.2").
func Parse(s string) (Decimal, error) {
	d, err := shopspring.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustParse is Parse but panics on malformed input. Only safe for literals
// baked into config defaults or tests.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewFromTick builds a Decimal from a raw wire string and immediately rounds
// it to scale decimal places using HALF_UP, matching how a venue reports
// prices at its configured tick size.
func NewFromTick(raw string, scale int32) (Decimal, error) {
	d, err := Parse(raw)
	if err != nil {
		return Decimal{}, err
	}
	return d.Round(scale, HalfUp), nil
}

// NewFromInt returns v as a Decimal with no fractional part, e.g.
// NewFromInt(150) is 150.
func NewFromInt(v int64) Decimal {
	return Decimal{d: shopspring.NewFromInt(v)}
}

func (d Decimal) Add(o Decimal) Decimal { return Decimal{d: d.d.Add(o.d)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{d: d.d.Sub(o.d)} }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{d: d.d.Mul(o.d)} }
func (d Decimal) Neg() Decimal          { return Decimal{d: d.d.Neg()} }
func (d Decimal) Abs() Decimal         { return Decimal{d: d.d.Abs()} }

// DivRound divides and snaps the quotient to precision decimal places using
// mode. Division by zero panics, matching shopspring/decimal's own behavior —
// callers must check the divisor up front.
func (d Decimal) DivRound(o Decimal, precision int32, mode RoundingMode) Decimal {
	q := d.d.DivRound(o.d, precision+2) // extra guard digits before final rounding
	return Decimal{d: q}.Round(precision, mode)
}

// Round snaps d to places decimal digits using mode.
func (d Decimal) Round(places int32, mode RoundingMode) Decimal {
	switch mode {
	case Floor:
		return Decimal{d: d.d.Truncate(places)}
	default:
		return Decimal{d: d.d.Round(places)}
	}
}

func (d Decimal) LessThan(o Decimal) bool        { return d.d.LessThan(o.d) }
func (d Decimal) LessOrEqual(o Decimal) bool     { return d.d.LessThanOrEqual(o.d) }
func (d Decimal) GreaterThan(o Decimal) bool     { return d.d.GreaterThan(o.d) }
func (d Decimal) GreaterOrEqual(o Decimal) bool  { return d.d.GreaterThanOrEqual(o.d) }
func (d Decimal) Equal(o Decimal) bool           { return d.d.Equal(o.d) }
func (d Decimal) IsZero() bool                   { return d.d.IsZero() }
func (d Decimal) IsPositive() bool               { return d.d.IsPositive() }
func (d Decimal) IsNegative() bool               { return d.d.IsNegative() }
func (d Decimal) Sign() int                      { return d.d.Sign() }

// Min returns the smaller of d and o.
func (d Decimal) Min(o Decimal) Decimal {
	if d.LessThan(o) {
		return d
	}
	return o
}

// Max returns the larger of d and o.
func (d Decimal) Max(o Decimal) Decimal {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

// Float64 exposes an approximate value for logging/metrics only — never for
// comparisons or money arithmetic.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// String renders without scientific notation, suitable for the trade log and
// wire payloads.
func (d Decimal) String() string {
	return d.d.String()
}

// MarshalJSON renders as a JSON string to avoid float round-tripping through
// encoding/json's float64 path.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or bare number.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
