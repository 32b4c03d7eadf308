package helper

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantizeDown snaps a value to the largest multiple of step not above it.
// Used for order quantities (the exchange rejects sub-step remainders) and
// for prices on the side where rounding toward the position is unsafe.
func QuantizeDown(v, step float64) float64 {
	if step <= 0 || v <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	q, _ := d.Div(s).Floor().Mul(s).Float64()
	return q
}

// QuantizeUp snaps a value to the smallest multiple of step not below it.
func QuantizeUp(v, step float64) float64 {
	if step <= 0 || v <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	q, _ := d.Div(s).Ceil().Mul(s).Float64()
	return q
}

// QuantizeNearest snaps to the closest multiple of step.
func QuantizeNearest(v, step float64) float64 {
	if step <= 0 || v <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	q, _ := d.Div(s).Round(0).Mul(s).Float64()
	return q
}

// IsMultipleOf reports whether v is a whole multiple of step within
// floating-point tolerance.
func IsMultipleOf(v, step float64) bool {
	if step <= 0 {
		return false
	}
	r := math.Mod(v, step)
	eps := step * 1e-6
	return r < eps || step-r < eps
}

// SamePrice compares two prices within a relative floating-point tolerance,
// for de-duplicating stops at the same trigger level.
func SamePrice(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return false
	}
	return math.Abs(a-b) <= scale*1e-6
}

// FormatFloat renders a float the way the exchange wants it: plain decimal
// notation, no exponent, no trailing zeros.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// FormatWithPrecision renders a float with at most prec decimals, trimmed.
func FormatWithPrecision(v float64, prec int) string {
	if prec < 0 {
		return FormatFloat(v)
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// IsFinitePositive reports a usable price: finite, not NaN, strictly > 0.
func IsFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
