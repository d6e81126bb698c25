package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotHashDeterministic(t *testing.T) {
	g1 := NewGameState()
	g1.Engine.AddEntity(EntityFromFloat(1, 10, 20))
	g1.Engine.AddEntity(EntityFromFloat(2, 30, 40))

	g2 := NewGameState()
	g2.Engine.AddEntity(EntityFromFloat(2, 30, 40))
	g2.Engine.AddEntity(EntityFromFloat(1, 10, 20))

	assert.Equal(t, g1.ComputeStateHash(), g2.ComputeStateHash())
}

func TestSnapshotHashChangesOnDivergence(t *testing.T) {
	g1 := NewGameState()
	g1.Engine.AddEntity(EntityFromFloat(1, 10, 20))

	g2 := NewGameState()
	g2.Engine.AddEntity(EntityFromFloat(1, 10, 21))

	assert.NotEqual(t, g1.ComputeStateHash(), g2.ComputeStateHash())
}

func TestSaveRestoreSnapshot(t *testing.T) {
	g := NewGameState()
	g.Engine.AddEntity(EntityFromFloat(1, 10, 20))
	g.SaveSnapshot()

	e := g.Engine.Entity(1)
	e.X = e.X.Add(e.X)
	g.AdvanceFrame()

	ok := g.RestoreSnapshot(0)
	require.True(t, ok)
	restored := g.Engine.Entity(1)
	assert.InDelta(t, 10.0, restored.X.ToFloat(), 1e-3)
}

func TestRestoreSnapshotMissingFrame(t *testing.T) {
	g := NewGameState()
	assert.False(t, g.RestoreSnapshot(999))
}

func TestSnapshotEvictionPastWindow(t *testing.T) {
	g := NewGameState()
	g.Engine.AddEntity(NewEntity(1))
	for i := 0; i < MaxSnapshots+10; i++ {
		g.SaveSnapshot()
		g.AdvanceFrame()
	}
	_, ok := g.Snapshot(0)
	assert.False(t, ok)
	_, ok = g.Snapshot(g.FrameID - 1)
	assert.True(t, ok)
}

func TestStateValidatorDetectsMismatch(t *testing.T) {
	v := NewStateValidator()
	v.RecordHash(1, "abc")

	assert.True(t, v.VerifyHash(1, "abc"))
	assert.False(t, v.VerifyHash(1, "xyz"))

	mismatches := v.Mismatches()
	require.Len(t, mismatches, 1)
	assert.Equal(t, uint32(1), mismatches[0].FrameID)
}

func TestStateValidatorSkipsUnrecordedFrame(t *testing.T) {
	v := NewStateValidator()
	assert.True(t, v.VerifyHash(42, "whatever"))
}

func TestStateValidatorClearMismatches(t *testing.T) {
	v := NewStateValidator()
	v.RecordHash(1, "a")
	v.VerifyHash(1, "b")
	require.Len(t, v.Mismatches(), 1)
	v.ClearMismatches()
	assert.Empty(t, v.Mismatches())
}

func TestBindPlayerEntity(t *testing.T) {
	g := NewGameState()
	g.Engine.AddEntity(NewEntity(5))
	g.BindPlayerEntity(1, 5)
	assert.Equal(t, uint32(5), g.PlayerEntity(1).ID)
	assert.Nil(t, g.PlayerEntity(2))
}
