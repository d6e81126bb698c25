package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromIntRoundTrip(t *testing.T) {
	f := FromInt(100)
	assert.Equal(t, 100, f.ToInt())
	assert.InDelta(t, 100.0, f.ToFloat(), 1e-9)
}

func TestMulWidensBeforeShift(t *testing.T) {
	a := FromInt(30000)
	b := FromFloat(0.9)
	got := a.Mul(b)
	assert.InDelta(t, 27000.0, got.ToFloat(), 1.0)
}

func TestDivWidensBeforeShift(t *testing.T) {
	a := FromInt(10)
	b := FromInt(4)
	got := a.Div(b)
	assert.InDelta(t, 2.5, got.ToFloat(), 1e-3)
}

func TestDivByZeroPanics(t *testing.T) {
	a := FromInt(10)
	assert.Panics(t, func() {
		a.Div(Fixed(0))
	})
}

func TestSaturation(t *testing.T) {
	huge := FromInt(1 << 20)
	doubled := huge.Mul(FromInt(1 << 20))
	assert.Equal(t, int32(maxRaw), doubled.Raw())
}

func TestNegativeShiftIsArithmetic(t *testing.T) {
	neg := FromInt(-10)
	got := neg.Mul(FromFloat(0.5))
	assert.InDelta(t, -5.0, got.ToFloat(), 1e-3)
}

func TestClamp(t *testing.T) {
	f := FromInt(500)
	require.Equal(t, FromInt(100), f.Clamp(FromInt(-100), FromInt(100)))
	require.Equal(t, FromInt(-100), FromInt(-500).Clamp(FromInt(-100), FromInt(100)))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, FromInt(5), FromInt(-5).Abs())
	assert.Equal(t, FromInt(5), FromInt(5).Abs())
}
