// Package fixedpoint implements the Q16.16 fixed-point arithmetic that
// every peer in a lockstep session must agree on bit-for-bit. No
// floating point may appear in a cross-peer calculation: two peers
// executing the identical op sequence with the same fraction-bit
// configuration must land on the identical raw int32.
package fixedpoint

import "math"

// FractionBits is the single configuration point for fixed-point
// precision across the process. All peers in a session MUST agree on
// this value; it is set once at process init (see config.FixedPoint)
// and never changes mid-session.
var FractionBits uint = 16

// Scale returns 2^FractionBits, recomputed from the current
// configuration rather than cached, since Configure may run after
// package init in tests.
func Scale() int64 {
	return int64(1) << FractionBits
}

const (
	maxRaw = (1 << 31) - 1
	minRaw = -(1 << 31)
)

// Configure sets the global fraction-bit width. Only valid before any
// FixedPoint value crosses the wire — hot reconfiguration mid-room
// would silently desync every peer that already computed a state
// hash under the old width.
func Configure(fractionBits uint) {
	if fractionBits < 1 || fractionBits > 30 {
		panic("fixedpoint: fraction bits must be 1-30")
	}
	FractionBits = fractionBits
}

// Fixed is a Q(32-FractionBits).FractionBits signed fixed-point value
// stored as a raw int32. Comparisons and equality are on Raw directly;
// never compare the float64 projection across peers.
type Fixed int32

// FromInt builds a fixed-point value from an integer.
func FromInt(v int) Fixed {
	return saturate(int64(v) << FractionBits)
}

// FromFloat builds a fixed-point value from a float64. This conversion
// is inherently peer-local (floats are not guaranteed bit-identical
// across platforms) — use it only for one-shot configuration loading,
// never inside the simulation loop.
func FromFloat(v float64) Fixed {
	return saturate(int64(math.Round(v * float64(Scale()))))
}

// FromRaw wraps an already-scaled raw value, e.g. when deserializing
// wire bytes.
func FromRaw(raw int32) Fixed {
	return Fixed(raw)
}

// Raw returns the underlying scaled integer.
func (f Fixed) Raw() int32 {
	return int32(f)
}

// ToFloat projects back to a float64 for UI/logging only.
func (f Fixed) ToFloat() float64 {
	return float64(f) / float64(Scale())
}

// ToInt truncates the fractional part.
func (f Fixed) ToInt() int {
	return int(int32(f) >> FractionBits)
}

// Add performs saturating fixed-point addition.
func (f Fixed) Add(g Fixed) Fixed {
	return saturate(int64(f) + int64(g))
}

// Sub performs saturating fixed-point subtraction.
func (f Fixed) Sub(g Fixed) Fixed {
	return saturate(int64(f) - int64(g))
}

// Mul multiplies two fixed-point values, widening to int64 before the
// right shift so the intermediate product never overflows int32.
// Implementations that skip the widen step will disagree with this
// one on any product whose magnitude exceeds ~2^15 in Q16.16.
func (f Fixed) Mul(g Fixed) Fixed {
	product := int64(f) * int64(g)
	return saturate(product >> FractionBits)
}

// Div widens the dividend into the fraction range before dividing, the
// mirror image of Mul's widen-then-shift. Division by zero panics —
// callers at the simulation boundary must guard for zero divisors
// themselves, since a panic mid-tick would desync every peer
// differently depending on where in the op sequence it occurred.
func (f Fixed) Div(g Fixed) Fixed {
	if g == 0 {
		panic("fixedpoint: division by zero")
	}
	return saturate((int64(f) << FractionBits) / int64(g))
}

// Neg negates the value.
func (f Fixed) Neg() Fixed {
	return saturate(-int64(f))
}

// Abs returns the absolute value, saturating at maxRaw when f is
// minRaw (whose negation overflows int32).
func (f Fixed) Abs() Fixed {
	if f < 0 {
		return f.Neg()
	}
	return f
}

// Clamp restricts f to [lo, hi].
func (f Fixed) Clamp(lo, hi Fixed) Fixed {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func saturate(raw int64) Fixed {
	if raw > maxRaw {
		return Fixed(maxRaw)
	}
	if raw < minRaw {
		return Fixed(minRaw)
	}
	return Fixed(raw)
}
