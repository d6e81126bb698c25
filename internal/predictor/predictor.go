// Package predictor implements client-side input prediction and
// rollback: inputs are applied locally the instant they're produced,
// and corrected by replaying from a snapshot whenever the server's
// confirmed frame disagrees with what was predicted for other players.
package predictor

import (
	"bytes"
	"sort"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/frame"
	"github.com/fsync/server/internal/metrics"
	"github.com/fsync/server/internal/protocol"
	"github.com/fsync/server/internal/sim"
)

// MaxPredictedFrames bounds how far ahead of the last confirmed frame
// the predictor will run (one second at 30fps). Once reached, Predict
// stalls rather than predicting further.
const MaxPredictedFrames = 30

// stepMillis is the fixed per-frame physics step used during both live
// prediction and rollback replay, matching the 30Hz tick.
const stepMillis = 33

// Result reports what happened when a server frame arrived for a
// frame ID the predictor had already guessed.
type Result struct {
	FrameID         uint32
	Predicted       bool // this frame ID had a local prediction
	Correct         bool // the prediction matched the server's frame
	RollbackNeeded  bool
}

type pendingInput struct {
	FrameID uint32
	Data    []byte
}

// ClientPredictor runs ahead of the confirmed frame stream for one
// local player, then reconciles against the server's authoritative
// ordering. Grounded on original_source/client/predictor.py's
// ClientPredictor.
type ClientPredictor struct {
	gameState *sim.GameState
	playerID  uint16
	moveSpeed fixedpoint.Fixed

	predictedFrames   map[uint32]*frame.Frame
	unconfirmedInputs []pendingInput

	predictionCount int
	correctCount    int
	rollbackCount   int

	metrics *metrics.Registry
}

// SetMetrics attaches a registry the predictor will report rollback
// counts to. Optional.
func (p *ClientPredictor) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

// NewClientPredictor creates a predictor for playerID driving
// gameState, moving at moveSpeed units/second.
func NewClientPredictor(gameState *sim.GameState, playerID uint16, moveSpeed fixedpoint.Fixed) *ClientPredictor {
	return &ClientPredictor{
		gameState:       gameState,
		playerID:        playerID,
		moveSpeed:       moveSpeed,
		predictedFrames: make(map[uint32]*frame.Frame),
	}
}

// Predict snapshots current state, guesses other players' inputs via
// lastInputFor, applies the combined frame immediately, and returns the
// predicted frame. Returns nil if the predictor has already
// run MaxPredictedFrames ahead of confirmation and must stall.
func (p *ClientPredictor) Predict(frameID uint32, myInput []byte, otherPlayers []uint16) *frame.Frame {
	if len(p.predictedFrames) >= MaxPredictedFrames {
		return nil
	}

	p.gameState.SaveSnapshotAs(frameID)

	inputs := map[uint16][]byte{p.playerID: myInput}
	for _, other := range otherPlayers {
		inputs[other] = p.lastInputFor(other)
	}

	predicted := &frame.Frame{FrameID: frameID, Inputs: inputs, Confirmed: false}
	p.predictedFrames[frameID] = predicted
	p.unconfirmedInputs = append(p.unconfirmedInputs, pendingInput{FrameID: frameID, Data: myInput})

	p.applyFrame(predicted)
	p.predictionCount++
	return predicted
}

// OnServerFrame reconciles an authoritative frame against whatever was
// (or wasn't) predicted for it.
func (p *ClientPredictor) OnServerFrame(serverFrame *frame.Frame, otherPlayers []uint16) Result {
	frameID := serverFrame.FrameID

	predicted, wasPredicted := p.predictedFrames[frameID]
	if !wasPredicted {
		p.applyFrame(serverFrame)
		return Result{FrameID: frameID, Predicted: false, Correct: true, RollbackNeeded: false}
	}

	if p.inputsMatch(predicted.Inputs, serverFrame.Inputs) {
		p.correctCount++
		delete(p.predictedFrames, frameID)
		p.dropConfirmedInput(frameID)
		return Result{FrameID: frameID, Predicted: true, Correct: true, RollbackNeeded: false}
	}

	p.rollbackAndReplay(frameID, serverFrame)
	p.rollbackCount++
	if p.metrics != nil {
		p.metrics.PredictionRollbacks.Inc()
	}
	return Result{FrameID: frameID, Predicted: true, Correct: false, RollbackNeeded: true}
}

// lastInputFor returns the most recent predicted input recorded for
// playerID, searching predicted frames from newest to oldest, or an
// empty slice if none is known yet. Inputs received in server frames
// are not recorded, so the guess for another player is always the
// empty input.
func (p *ClientPredictor) lastInputFor(playerID uint16) []byte {
	ids := make([]uint32, 0, len(p.predictedFrames))
	for id := range p.predictedFrames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	for _, id := range ids {
		if data, ok := p.predictedFrames[id].Inputs[playerID]; ok {
			return data
		}
	}
	return []byte{}
}

// inputsMatch compares every player's input except the local player's
// own (which is never predicted, only echoed back by the server).
func (p *ClientPredictor) inputsMatch(predicted, actual map[uint16][]byte) bool {
	for playerID, actualData := range actual {
		if playerID == p.playerID {
			continue
		}
		if !bytes.Equal(predicted[playerID], actualData) {
			return false
		}
	}
	return true
}

// applyFrame decodes and applies every player's input for one frame,
// steps physics once, and advances the tracked frame counter.
func (p *ClientPredictor) applyFrame(f *frame.Frame) {
	for playerID, data := range f.Inputs {
		if len(data) == 0 {
			continue
		}
		input, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		entity := p.gameState.PlayerEntity(playerID)
		if entity == nil {
			continue
		}
		p.gameState.Engine.ApplyInput(entity.ID, input.Flags, p.moveSpeed)
		if input.Flags&protocol.FlagAttack != 0 {
			p.gameState.Engine.ApplyAttack(entity.ID)
		}
	}

	p.gameState.Engine.Step(stepMillis)
	p.gameState.FrameID = f.FrameID
}

// rollbackAndReplay restores state from just before wrongFrameID,
// applies the server's correct frame, then replays every later
// prediction still pending so the local simulation catches back up.
func (p *ClientPredictor) rollbackAndReplay(wrongFrameID uint32, correctFrame *frame.Frame) {
	p.gameState.RestoreSnapshot(wrongFrameID)
	p.applyFrame(correctFrame)

	var replay []uint32
	for id := range p.predictedFrames {
		if id > wrongFrameID {
			replay = append(replay, id)
		}
	}
	sort.Slice(replay, func(i, j int) bool { return replay[i] < replay[j] })

	for _, id := range replay {
		p.applyFrame(p.predictedFrames[id])
	}

	for id := range p.predictedFrames {
		if id <= wrongFrameID {
			delete(p.predictedFrames, id)
		}
	}
}

// dropConfirmedInput discards unconfirmed-input records at or before
// confirmedFrameID.
func (p *ClientPredictor) dropConfirmedInput(confirmedFrameID uint32) {
	kept := p.unconfirmedInputs[:0]
	for _, pi := range p.unconfirmedInputs {
		if pi.FrameID > confirmedFrameID {
			kept = append(kept, pi)
		}
	}
	p.unconfirmedInputs = kept
}

// Accuracy returns the fraction (0-100) of predictions that matched
// the server's eventual frame.
func (p *ClientPredictor) Accuracy() float64 {
	if p.predictionCount == 0 {
		return 0
	}
	return float64(p.correctCount) / float64(p.predictionCount) * 100
}

// Stats summarizes predictor counters for diagnostics/metrics export.
type Stats struct {
	PredictionCount   int
	CorrectCount      int
	RollbackCount     int
	Accuracy          float64
	UnconfirmedInputs int
	PredictedFrames   int
}

// Stats returns a snapshot of the predictor's running counters.
func (p *ClientPredictor) Stats() Stats {
	return Stats{
		PredictionCount:   p.predictionCount,
		CorrectCount:      p.correctCount,
		RollbackCount:     p.rollbackCount,
		Accuracy:          p.Accuracy(),
		UnconfirmedInputs: len(p.unconfirmedInputs),
		PredictedFrames:   len(p.predictedFrames),
	}
}
