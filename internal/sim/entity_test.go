package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityFromFloatRoundTrip(t *testing.T) {
	e := EntityFromFloat(1, 100.5, 200.0)
	assert.InDelta(t, 100.5, e.X.ToFloat(), 1e-3)
	assert.InDelta(t, 200.0, e.Y.ToFloat(), 1e-3)
}

func TestUpdatePositionIntegratesVelocity(t *testing.T) {
	e := NewEntity(1)
	e.SetVelocity(300, 0)
	e.UpdatePosition(1000)
	assert.InDelta(t, 300.0, e.X.ToFloat(), 1.0)
}

func TestUpdatePositionZeroDtNoOp(t *testing.T) {
	e := NewEntity(1)
	e.SetVelocity(300, 0)
	e.UpdatePosition(0)
	assert.Equal(t, 0, e.X.ToInt())
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := EntityFromFloat(5, 10, 20)
	e.HP = 42
	snap := e.ToSnapshot()
	restored := FromSnapshot(snap)
	assert.Equal(t, e.ID, restored.ID)
	assert.Equal(t, e.X, restored.X)
	assert.Equal(t, e.HP, restored.HP)
}

func TestEntityPoolAcquireRelease(t *testing.T) {
	p := NewEntityPool(2)
	e := p.Acquire(10)
	require.NotNil(t, e)
	assert.Equal(t, uint32(10), e.ID)

	assert.Panics(t, func() { p.Acquire(10) })

	p.Release(e)
	e2 := p.Acquire(10)
	assert.Equal(t, uint32(10), e2.ID)
}

func TestEntityPoolGrowsPastInitialSize(t *testing.T) {
	p := NewEntityPool(0)
	e := p.Acquire(1)
	assert.NotNil(t, e)
}
