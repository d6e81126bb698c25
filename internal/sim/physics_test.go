package sim

import (
	"testing"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepAppliesGravity(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	eng.AddEntity(e)
	eng.Step(1000)
	assert.Greater(t, e.VY.ToFloat(), 0.0)
}

func TestStepClampsMaxVelocity(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	e.VY = fixedpoint.FromInt(999999)
	eng.AddEntity(e)
	eng.Step(33)
	assert.LessOrEqual(t, e.VY.ToFloat(), eng.MaxVelocity.ToFloat())
}

func TestBoundaryClampsPosition(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	e.X = eng.WorldWidth.Add(fixedpoint.FromInt(1000))
	eng.AddEntity(e)
	eng.Step(33)
	assert.LessOrEqual(t, e.X.Add(e.Width).ToFloat(), eng.WorldWidth.ToFloat()+1e-6)
	assert.Equal(t, fixedpoint.Fixed(0), e.VX)
}

func TestBoundaryClampsNegativePosition(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	e.X = fixedpoint.FromInt(-500)
	eng.AddEntity(e)
	eng.Step(33)
	assert.Equal(t, fixedpoint.FromInt(0), e.X)
}

func TestApplyInputSetsVelocity(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	eng.AddEntity(e)
	eng.ApplyInput(1, protocol.FlagMoveRight, DefaultMoveSpeed)
	assert.Equal(t, DefaultMoveSpeed, e.VX)
	assert.Equal(t, fixedpoint.Fixed(0), e.VY)
}

func TestApplyInputOpposingFlagsCancel(t *testing.T) {
	eng := NewEngine()
	e := NewEntity(1)
	eng.AddEntity(e)
	eng.ApplyInput(1, protocol.FlagMoveLeft|protocol.FlagMoveRight, DefaultMoveSpeed)
	assert.Equal(t, fixedpoint.Fixed(0), e.VX)
}

func TestCollisionSeparatesOverlappingEntities(t *testing.T) {
	eng := NewEngine()
	a := NewEntity(1)
	b := NewEntity(2)
	b.X = fixedpoint.FromInt(10) // overlaps a (width 32) heavily
	eng.AddEntity(a)
	eng.AddEntity(b)

	eng.Step(1)

	pairs := eng.LastCollisionPairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, [2]uint32{1, 2}, pairs[0])
	assert.NotEqual(t, a.X, fixedpoint.FromInt(0))
}

func TestDistanceSquaredOrigin(t *testing.T) {
	a := EntityFromFloat(1, 0, 0)
	b := EntityFromFloat(2, 3, 4)
	d := Distance(a, b)
	assert.Greater(t, d, int32(0))
}
