package domain

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is a wrapper around apd.Decimal so prices and rates never pass
// through binary floating point once they have been parsed.
type Decimal struct {
	apd.Decimal
}

// DefaultContext is used for arithmetic operations.
var DefaultContext = apd.BaseContext.WithPrecision(20)

// Zero constant for convenience
var Zero = NewDecimalFromInt(0)

// One is the identity exchange rate.
var One = NewDecimalFromInt(1)

// NewDecimalFromInt creates a Decimal from an int64
func NewDecimalFromInt(v int64) Decimal {
	d := Decimal{}
	d.SetInt64(v)
	return d
}

// NewDecimalFromString creates a Decimal from a string
func NewDecimalFromString(v string) (Decimal, error) {
	d := Decimal{}
	_, _, err := d.SetString(v)
	if err != nil {
		return d, fmt.Errorf("invalid decimal string %s: %w", v, err)
	}
	return d, nil
}

// NewDecimalFromFloat creates a Decimal from a float64.
func NewDecimalFromFloat(v float64) (Decimal, error) {
	d := Decimal{}
	if _, err := d.SetFloat64(v); err != nil {
		return d, fmt.Errorf("invalid decimal float %v: %w", v, err)
	}
	return d, nil
}

// String implements the fmt.Stringer interface.
func (d Decimal) String() string {
	return d.Decimal.String()
}

func (d Decimal) Mul(other Decimal) (Decimal, error) {
	res := Decimal{}
	if _, err := DefaultContext.Mul(&res.Decimal, &d.Decimal, &other.Decimal); err != nil {
		return res, fmt.Errorf("mul operation failed: %w", err)
	}
	return res, nil
}

func (d Decimal) IsZero() bool {
	return d.Decimal.IsZero()
}

// IsFinite reports whether d is neither NaN nor infinite.
func (d Decimal) IsFinite() bool {
	return d.Form == apd.Finite
}

// IsPositive reports whether d is a finite number strictly greater than zero.
func (d Decimal) IsPositive() bool {
	return d.IsFinite() && d.Sign() > 0
}

func (d Decimal) Equal(other Decimal) bool {
	return d.Decimal.Cmp(&other.Decimal) == 0
}

func (d Decimal) Cmp(other Decimal) int {
	return d.Decimal.Cmp(&other.Decimal)
}

// Between reports whether lo < d < hi.
func (d Decimal) Between(lo, hi Decimal) bool {
	return d.Cmp(lo) > 0 && d.Cmp(hi) < 0
}

// Float64 returns the nearest float64 value.
func (d Decimal) Float64() float64 {
	f, err := d.Decimal.Float64()
	if err != nil {
		return 0
	}
	return f
}

// MarshalJSON implements the json.Marshaler interface.
func (d Decimal) MarshalJSON() ([]byte, error) {
	if !d.IsFinite() {
		return []byte("null"), nil
	}
	return []byte(d.String()), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	// Remove quotes if present
	s := string(data)
	if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	_, _, err := d.SetString(s)
	return err
}

// Round rounds the decimal half-up to the specified number of places.
func (d Decimal) Round(places int32) (Decimal, error) {
	res := Decimal{}
	ctx := apd.BaseContext.WithPrecision(20)
	ctx.Rounding = apd.RoundHalfUp

	// Quantize uses only the exponent of the target, 10^-places.
	if _, err := ctx.Quantize(&res.Decimal, &d.Decimal, -places); err != nil {
		return res, fmt.Errorf("quantize operation failed: %w", err)
	}
	return res, nil
}
