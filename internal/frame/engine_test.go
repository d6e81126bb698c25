package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickAdvancesOnlyWhenComplete(t *testing.T) {
	e := NewEngine(2)
	e.AddInput(0, 0, []byte{1})
	assert.Nil(t, e.Tick(0))
	assert.Equal(t, uint32(0), e.CurrentFrameID())

	e.AddInput(0, 1, []byte{2})
	f := e.Tick(1)
	require.NotNil(t, f)
	assert.True(t, f.Confirmed)
	assert.Equal(t, uint32(1), e.CurrentFrameID())
}

func TestForceTickFillsMissingPlayers(t *testing.T) {
	e := NewEngine(3)
	e.AddInput(0, 0, []byte{9})

	f := e.ForceTick(0)
	require.NotNil(t, f)
	assert.False(t, f.Confirmed)
	assert.Equal(t, []byte{9}, f.Inputs[0])
	assert.Equal(t, []byte{}, f.Inputs[1])
	assert.Equal(t, []byte{}, f.Inputs[2])
	assert.Equal(t, uint32(1), e.CurrentFrameID())
}

func TestHistoryRetrievable(t *testing.T) {
	e := NewEngine(1)
	e.AddInput(0, 0, []byte{1})
	e.Tick(0)

	f := e.GetFrame(0)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0), f.FrameID)
}

func TestHistoryEvictionPastMaxHistory(t *testing.T) {
	e := NewEngine(1)
	e.maxHistory = 3
	for i := 0; i < 10; i++ {
		e.AddInput(e.CurrentFrameID(), 0, []byte{1})
		e.Tick(0)
	}
	assert.Nil(t, e.GetFrame(0))
	assert.NotNil(t, e.GetFrame(9))
}

func TestFramesSinceReturnsOrderedRun(t *testing.T) {
	e := NewEngine(1)
	for i := 0; i < 5; i++ {
		e.AddInput(e.CurrentFrameID(), 0, []byte{byte(i)})
		e.Tick(0)
	}

	frames := e.FramesSince(2)
	require.Len(t, frames, 3)
	assert.Equal(t, uint32(2), frames[0].FrameID)
	assert.Equal(t, uint32(4), frames[2].FrameID)
}

func TestStatsReflectsState(t *testing.T) {
	e := NewEngine(2)
	e.AddInput(0, 0, []byte{1})
	stats := e.Stats()
	assert.Equal(t, uint32(0), stats.CurrentFrame)
	assert.Equal(t, 2, stats.PlayerCount)
	assert.Equal(t, 1, stats.Buffer.PendingFrames)
}
