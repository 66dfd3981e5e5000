package simtime

import (
	"math"
	"strconv"
)

// Time is a point in simulation time, represented as Quotient + Remainder.
//
// For finite times Quotient is integral and 0 <= Remainder < 1. Infinite
// times carry the same infinity in both components.
type Time struct {
	Quotient  float64
	Remainder float64
}

var (
	// Inf is the time of an event that can never occur.
	Inf = Time{Quotient: math.Inf(1), Remainder: math.Inf(1)}

	// NegInf precedes every other time.
	NegInf = Time{Quotient: math.Inf(-1), Remainder: math.Inf(-1)}

	// Zero is the start of a run.
	Zero = Time{}
)

// FromFloat splits x into its integral and fractional parts.
// x = ±Inf maps to (±Inf, ±Inf).
func FromFloat(x float64) Time {
	if math.IsInf(x, 0) {
		return Time{Quotient: x, Remainder: x}
	}
	q, r := divmod(x)
	return Time{Quotient: q, Remainder: r}
}

// Add returns t advanced by delta. The remainder is renormalized so that
// any overflow moves into the quotient. An infinite delta short-circuits
// to the infinite time of the same sign; an infinite receiver is returned
// unchanged for any finite delta.
func (t Time) Add(delta float64) Time {
	if math.IsInf(delta, 0) {
		return Time{Quotient: delta, Remainder: delta}
	}
	if t.IsInf() {
		return t
	}
	q, r := divmod(t.Remainder + delta)
	return Time{Quotient: t.Quotient + q, Remainder: r}
}

// Sub returns t - other as a float64.
func (t Time) Sub(other Time) float64 {
	return t.Quotient - other.Quotient + t.Remainder - other.Remainder
}

// Equal reports whether both components are exactly equal.
func (t Time) Equal(other Time) bool {
	return t.Quotient == other.Quotient && t.Remainder == other.Remainder
}

// Less orders times lexicographically by (Quotient, Remainder).
func (t Time) Less(other Time) bool {
	return t.Quotient < other.Quotient || (t.Quotient == other.Quotient && t.Remainder < other.Remainder)
}

// LessEqual reports t < other or t == other.
func (t Time) LessEqual(other Time) bool {
	return t.Less(other) || t.Equal(other)
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to,
// or after other.
func (t Time) Compare(other Time) int {
	switch {
	case t.Less(other):
		return -1
	case t.Equal(other):
		return 0
	default:
		return 1
	}
}

// IsInf reports whether t is +Inf or -Inf.
func (t Time) IsInf() bool {
	return math.IsInf(t.Quotient, 0)
}

// Float64 collapses t into a single float64. Precision is lost for large
// quotients; use it for output only.
func (t Time) Float64() float64 {
	return t.Quotient + t.Remainder
}

// String formats the collapsed value.
func (t Time) String() string {
	return strconv.FormatFloat(t.Float64(), 'g', -1, 64)
}

// divmod mirrors floored division by 1: the remainder takes the sign of
// the divisor and therefore lies in [0, 1).
func divmod(x float64) (float64, float64) {
	q := math.Floor(x)
	return q, x - q
}
