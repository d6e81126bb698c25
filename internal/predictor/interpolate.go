package predictor

import (
	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/sim"
)

// frameSnapshot is a plain-data capture of every entity's position,
// cheap enough to keep two of (previous/current) for interpolation.
type frameSnapshot struct {
	frameID  uint32
	entities map[uint32]sim.Snapshot
}

// InterpolationRenderer smooths rendering between two successive
// committed logical frames. It never feeds back into the simulation —
// render_alpha only affects what's drawn, matching §4.5. Grounded on
// original_source/client/predictor.py's InterpolationRenderer.
type InterpolationRenderer struct {
	gameState *sim.GameState
	prev      *frameSnapshot
	curr      *frameSnapshot
	alpha     float64
}

// NewInterpolationRenderer creates a renderer tracking gameState.
func NewInterpolationRenderer(gameState *sim.GameState) *InterpolationRenderer {
	return &InterpolationRenderer{gameState: gameState}
}

// OnLogicFrame captures the current state as the new interpolation
// target, rolling the previous target back one slot. Call this once
// per committed logic frame, after the frame has been applied.
func (r *InterpolationRenderer) OnLogicFrame() {
	r.prev = r.curr
	r.curr = r.captureState()
	r.alpha = 0
}

// Update recomputes the interpolation factor alpha = dt/frameTime,
// clamped to [0,1], from the render loop's elapsed time since the last
// logic frame.
func (r *InterpolationRenderer) Update(dt, frameTime float64) {
	if frameTime > 0 {
		r.alpha = dt / frameTime
		if r.alpha > 1 {
			r.alpha = 1
		} else if r.alpha < 0 {
			r.alpha = 0
		}
	}
}

// InterpolatedPosition returns entityID's render-time position, linearly
// interpolated between the previous and current logic frame snapshots.
// Falls back to the entity's live position when no snapshot pair is
// available yet (e.g. the first frame after connecting).
func (r *InterpolationRenderer) InterpolatedPosition(entityID uint32) (x, y float64, ok bool) {
	if r.prev == nil || r.curr == nil {
		return r.livePosition(entityID)
	}

	prevEntity, prevOK := r.prev.entities[entityID]
	currEntity, currOK := r.curr.entities[entityID]
	if !prevOK || !currOK {
		return r.livePosition(entityID)
	}

	prevX, prevY := toFloat(prevEntity)
	currX, currY := toFloat(currEntity)

	x = prevX + (currX-prevX)*r.alpha
	y = prevY + (currY-prevY)*r.alpha
	return x, y, true
}

func (r *InterpolationRenderer) livePosition(entityID uint32) (float64, float64, bool) {
	entity := r.gameState.Engine.Entity(entityID)
	if entity == nil {
		return 0, 0, false
	}
	x, y := entity.X.ToFloat(), entity.Y.ToFloat()
	return x, y, true
}

func (r *InterpolationRenderer) captureState() *frameSnapshot {
	entities := make(map[uint32]sim.Snapshot, len(r.gameState.Engine.Entities()))
	for _, e := range r.gameState.Engine.Entities() {
		entities[e.ID] = e.ToSnapshot()
	}
	return &frameSnapshot{frameID: r.gameState.FrameID, entities: entities}
}

func toFloat(s sim.Snapshot) (float64, float64) {
	x := fixedpoint.FromRaw(s.X).ToFloat()
	y := fixedpoint.FromRaw(s.Y).ToFloat()
	return x, y
}
