package frame

import "sync"

// MaxHistory bounds the retained frame history (10 seconds at 30fps),
// matching the reference engine.
const MaxHistory = 300

// Engine drives frame commitment for one room: it owns the frame
// buffer, the current (not-yet-committed) frame counter, and a
// bounded history of committed frames for replay/rollback/resync.
// Engine itself does not own a ticker — the caller (internal/room)
// decides when to call Tick/ForceTick, matching the teacher's pattern
// of separating the ticker loop from the state it drives.
type Engine struct {
	mu sync.Mutex

	PlayerCount  int
	buffer       *Buffer
	currentFrame uint32
	history      map[uint32]*Frame
	maxHistory   int
}

// NewEngine creates an engine for a room with playerCount seats.
func NewEngine(playerCount int) *Engine {
	return &Engine{
		PlayerCount: playerCount,
		buffer:      NewBuffer(),
		history:     make(map[uint32]*Frame),
		maxHistory:  MaxHistory,
	}
}

// AddInput stages one player's raw input for frameID.
func (e *Engine) AddInput(frameID uint32, playerID uint16, data []byte) {
	e.buffer.AddInput(frameID, playerID, data)
}

// Tick attempts to commit the current frame. On success it advances
// CurrentFrameID and returns the committed Frame; otherwise it returns
// nil and the caller should retry on the next tick (or force-commit
// once its deadline has passed).
func (e *Engine) Tick(nowUnixNano int64) *Frame {
	e.mu.Lock()
	current := e.currentFrame
	e.mu.Unlock()

	f := e.buffer.TryCommitFrame(current, e.PlayerCount, nowUnixNano)
	if f == nil {
		return nil
	}

	e.mu.Lock()
	e.recordHistoryUnlocked(f)
	e.currentFrame++
	e.mu.Unlock()
	return f
}

// ForceTick commits the current frame regardless of completeness,
// padding any missing player's input with an empty byte slice. Used
// when a frame's deadline has passed without every player reporting
// in — the lockstep loop must not stall on one slow or dropped peer.
func (e *Engine) ForceTick(nowUnixNano int64) *Frame {
	e.mu.Lock()
	current := e.currentFrame
	e.mu.Unlock()

	pending := e.buffer.PendingInputs(current)
	inputs := make(map[uint16][]byte, e.PlayerCount)
	for id, data := range pending {
		inputs[id] = data
	}
	for playerID := uint16(0); int(playerID) < e.PlayerCount; playerID++ {
		if _, ok := inputs[playerID]; !ok {
			inputs[playerID] = []byte{}
		}
	}

	f := &Frame{
		FrameID:           current,
		Inputs:            inputs,
		Confirmed:         false,
		TimestampUnixNano: nowUnixNano,
	}

	e.buffer.StoreFrame(f)
	e.buffer.DiscardPending(current)

	e.mu.Lock()
	e.recordHistoryUnlocked(f)
	e.currentFrame++
	e.mu.Unlock()
	return f
}

// recordHistoryUnlocked stores f in history and evicts entries older
// than maxHistory frames. Caller must hold mu.
func (e *Engine) recordHistoryUnlocked(f *Frame) {
	e.history[f.FrameID] = f
	oldest := int64(f.FrameID) - int64(e.maxHistory)
	for id := range e.history {
		if int64(id) < oldest {
			delete(e.history, id)
		}
	}
}

// GetFrame returns a historical frame by ID, or nil.
func (e *Engine) GetFrame(frameID uint32) *Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history[frameID]
}

// FramesSince returns every committed frame from fromFrame (inclusive)
// to the current frame, in order, for resync after a reconnect. Gaps
// left by history eviction are skipped rather than erroring.
func (e *Engine) FramesSince(fromFrame uint32) []*Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Frame
	for id := fromFrame; id < e.currentFrame; id++ {
		if f, ok := e.history[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// CurrentFrameID returns the frame currently being assembled.
func (e *Engine) CurrentFrameID() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentFrame
}

// Stats summarizes engine state for /stats and Prometheus export.
type Stats struct {
	CurrentFrame uint32
	PlayerCount  int
	HistorySize  int
	Buffer       Status
}

// Stats returns a snapshot of engine + buffer state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	current := e.currentFrame
	historySize := len(e.history)
	e.mu.Unlock()

	return Stats{
		CurrentFrame: current,
		PlayerCount:  e.PlayerCount,
		HistorySize:  historySize,
		Buffer:       e.buffer.Status(),
	}
}
