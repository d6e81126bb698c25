package predictor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/frame"
	"github.com/fsync/server/internal/metrics"
	"github.com/fsync/server/internal/protocol"
	"github.com/fsync/server/internal/sim"
)

func newTestState() *sim.GameState {
	gs := sim.NewGameState()
	// Placed apart and clear of the world edges, so neither the boundary
	// clamp nor collision resolution zeroes the velocities under test.
	e1 := sim.EntityFromFloat(1, 100, 100)
	e2 := sim.EntityFromFloat(2, 300, 100)
	gs.Engine.AddEntity(e1)
	gs.Engine.AddEntity(e2)
	gs.BindPlayerEntity(0, 1)
	gs.BindPlayerEntity(1, 2)
	return gs
}

func encodeInput(frameID uint32, playerID uint16, flags uint8) []byte {
	return protocol.PlayerInput{FrameID: frameID, PlayerID: playerID, Flags: flags}.Encode()
}

func TestPredictAppliesLocalInputImmediately(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))

	myInput := encodeInput(0, 0, protocol.FlagMoveRight)
	f := p.Predict(0, myInput, []uint16{1})
	require.NotNil(t, f)

	entity := gs.Engine.Entity(1)
	assert.NotEqual(t, fixedpoint.Fixed(0), entity.VX)
	assert.Equal(t, uint32(0), gs.FrameID)
}

func TestPredictStallsAtMaxPredictedFrames(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))

	var last *frame.Frame
	for i := uint32(0); i < MaxPredictedFrames+5; i++ {
		last = p.Predict(i, encodeInput(i, 0, 0), nil)
	}
	assert.Nil(t, last)
	assert.Len(t, p.predictedFrames, MaxPredictedFrames)
}

func TestOnServerFrameAcceptsCorrectPrediction(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))

	p.Predict(0, encodeInput(0, 0, protocol.FlagMoveRight), []uint16{1})
	// Predictor guessed player 1's last input (empty) — server reports
	// the same empty guess was in fact correct only if actual matches;
	// here we feed back exactly what was predicted (empty) to hit the
	// "correct" path deterministically.
	serverFrame := &frame.Frame{
		FrameID: 0,
		Inputs:  map[uint16][]byte{0: encodeInput(0, 0, protocol.FlagMoveRight), 1: []byte{}},
	}
	result := p.OnServerFrame(serverFrame, []uint16{1})
	assert.True(t, result.Predicted)
	assert.True(t, result.Correct)
	assert.False(t, result.RollbackNeeded)
	_, stillPredicted := p.predictedFrames[0]
	assert.False(t, stillPredicted)
}

func TestOnServerFrameRollsBackOnMispredict(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))

	p.Predict(0, encodeInput(0, 0, 0), []uint16{1}) // predicts player 1 idle

	// Server reveals player 1 actually moved left at frame 0.
	serverFrame := &frame.Frame{
		FrameID: 0,
		Inputs:  map[uint16][]byte{0: encodeInput(0, 0, 0), 1: encodeInput(0, 1, protocol.FlagMoveLeft)},
	}
	result := p.OnServerFrame(serverFrame, []uint16{1})
	assert.True(t, result.RollbackNeeded)
	assert.Equal(t, 1, p.rollbackCount)

	entityAfter := gs.Engine.Entity(2)
	assert.NotEqual(t, fixedpoint.Fixed(0), entityAfter.VX) // velocity now reflects the corrected left input
}

func TestRollbackReportsMetric(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))
	reg := metrics.New()
	p.SetMetrics(reg)

	p.Predict(0, encodeInput(0, 0, 0), []uint16{1})
	serverFrame := &frame.Frame{
		FrameID: 0,
		Inputs:  map[uint16][]byte{0: encodeInput(0, 0, 0), 1: encodeInput(0, 1, protocol.FlagMoveLeft)},
	}
	p.OnServerFrame(serverFrame, []uint16{1})

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.PredictionRollbacks))
}

func TestOnServerFrameAppliesUnpredictedFrameDirectly(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))

	serverFrame := &frame.Frame{
		FrameID: 7,
		Inputs:  map[uint16][]byte{0: encodeInput(7, 0, protocol.FlagMoveUp)},
	}
	result := p.OnServerFrame(serverFrame, nil)
	assert.False(t, result.Predicted)
	assert.True(t, result.Correct)
	assert.Equal(t, uint32(7), gs.FrameID)
}

func TestStatsReflectCounters(t *testing.T) {
	gs := newTestState()
	p := NewClientPredictor(gs, 0, fixedpoint.FromInt(10))
	p.Predict(0, encodeInput(0, 0, 0), []uint16{1})

	stats := p.Stats()
	assert.Equal(t, 1, stats.PredictionCount)
	assert.Equal(t, 1, stats.PredictedFrames)
	assert.Equal(t, 1, stats.UnconfirmedInputs)
}
