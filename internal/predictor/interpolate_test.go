package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/sim"
)

func TestInterpolatedPositionFallsBackBeforeTwoFrames(t *testing.T) {
	gs := sim.NewGameState()
	e := sim.EntityFromFloat(1, 10, 20)
	gs.Engine.AddEntity(e)

	r := NewInterpolationRenderer(gs)
	x, y, ok := r.InterpolatedPosition(1)
	assert.True(t, ok)
	assert.InDelta(t, 10, x, 0.01)
	assert.InDelta(t, 20, y, 0.01)
}

func TestInterpolatedPositionBlendsBetweenFrames(t *testing.T) {
	gs := sim.NewGameState()
	e := sim.EntityFromFloat(1, 0, 0)
	gs.Engine.AddEntity(e)

	r := NewInterpolationRenderer(gs)
	r.OnLogicFrame() // prev = nil, curr = x=0

	e.X = fixedpoint.FromInt(10)
	r.OnLogicFrame() // prev = x=0, curr = x=10

	r.Update(0.5, 1.0) // halfway between logic frames
	x, _, ok := r.InterpolatedPosition(1)
	assert.True(t, ok)
	assert.InDelta(t, 5, x, 0.01)
}

func TestUpdateClampsAlpha(t *testing.T) {
	gs := sim.NewGameState()
	r := NewInterpolationRenderer(gs)
	r.Update(5.0, 1.0)
	assert.Equal(t, 1.0, r.alpha)

	r.Update(-1.0, 1.0)
	assert.Equal(t, 0.0, r.alpha)
}
