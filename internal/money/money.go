// Package money performs exact base-10 arithmetic over monetary values.
//
// Amounts cross package boundaries as float64 but every operation runs
// through decimal so that repeated fractional arithmetic never accumulates
// binary floating point error (0.1 + 0.2 yields exactly 0.3).
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrDivideByZero is a programming-contract violation: callers must never
// divide by a zero denominator for per-unit price calculations.
var ErrDivideByZero = errors.New("money: divide by zero")

func Add(a float64, b float64) float64 {
	return toFloat(dec(a).Add(dec(b)))
}

func Subtract(a float64, b float64) float64 {
	return toFloat(dec(a).Sub(dec(b)))
}

func Multiply(a float64, b float64) float64 {
	return toFloat(dec(a).Mul(dec(b)))
}

func Divide(a float64, b float64) (float64, error) {
	d := dec(b)
	if d.IsZero() {
		return 0, ErrDivideByZero
	}
	return toFloat(dec(a).Div(d)), nil
}

// Round rounds half away from zero to the given number of fractional digits.
func Round(a float64, digits int32) float64 {
	return toFloat(dec(a).Round(digits))
}

func Abs(a float64) float64 {
	return toFloat(dec(a).Abs())
}

func Sum(values []float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(dec(v))
	}
	return toFloat(total)
}

// FormatRate renders a fraction as a percentage string: 0.085 becomes
// "8.50%" and 0.1 becomes "10%". The fraction is multiplied by 100 in
// decimal space and formatted from the decimal directly, so no float
// arithmetic happens after the multiply.
func FormatRate(fraction float64, digits int32) string {
	rate := dec(fraction).Mul(decimal.NewFromInt(100))
	if rate.IsInteger() {
		return rate.String() + "%"
	}
	// Truncate, never round: the displayed rate must not overstate.
	return rate.Truncate(digits).StringFixed(digits) + "%"
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
