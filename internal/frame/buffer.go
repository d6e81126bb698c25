// Package frame implements the lockstep frame-assembly scheduler: a
// buffer that accumulates per-player input bytes until a frame is
// either fully confirmed or force-committed by the deadline, and an
// engine that drives frame commitment and keeps a bounded history.
package frame

import "sync"

// MaxInputBytes bounds one player's raw input payload per frame,
// matching protocol.MaxInputSize.
const MaxInputBytes = 1024

// MaxReadyQueue caps the backlog of ready-but-undelivered frame IDs
// retained for get-next-ready consumers, so a stalled consumer cannot
// grow the queue without bound.
const MaxReadyQueue = 1000

// Frame is one logical tick's worth of input: every player's raw
// wire-encoded PlayerInput bytes, keyed by player ID. Confirmed is
// true only when every expected player contributed before the
// deadline; a force-committed frame fills missing players with an
// empty byte slice instead.
type Frame struct {
	FrameID   uint32
	Inputs    map[uint16][]byte
	Confirmed bool
	TimestampUnixNano int64
}

// GetInput returns a player's input for this frame, or nil if absent.
func (f *Frame) GetInput(playerID uint16) []byte {
	return f.Inputs[playerID]
}

// IsComplete reports whether every one of playerCount players has
// contributed input.
func (f *Frame) IsComplete(playerCount int) bool {
	return len(f.Inputs) == playerCount
}

// Buffer accumulates pending per-player inputs and promotes a frame to
// committed once every player has contributed, smoothing over network
// jitter the way a client-side render buffer would. All methods are
// safe for concurrent use.
type Buffer struct {
	mu sync.Mutex

	frames       map[uint32]*Frame
	pendingInputs map[uint32]map[uint16][]byte
	readyQueue   []uint32
}

// NewBuffer creates an empty frame buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		frames:        make(map[uint32]*Frame),
		pendingInputs: make(map[uint32]map[uint16][]byte),
	}
}

// AddInput stages one player's raw input bytes for frameID. Oversized
// payloads are silently dropped rather than erroring — rejecting a
// malformed input is left to protocol.InputValidator upstream, not
// this buffer.
func (b *Buffer) AddInput(frameID uint32, playerID uint16, data []byte) {
	if len(data) > MaxInputBytes {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	slot, ok := b.pendingInputs[frameID]
	if !ok {
		slot = make(map[uint16][]byte)
		b.pendingInputs[frameID] = slot
	}
	slot[playerID] = data
}

// TryCommitFrame promotes frameID to a confirmed Frame once every one
// of playerCount players has a pending input, returning nil otherwise.
func (b *Buffer) TryCommitFrame(frameID uint32, playerCount int, nowUnixNano int64) *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, ok := b.pendingInputs[frameID]
	if !ok || len(pending) != playerCount {
		return nil
	}

	f := &Frame{
		FrameID:           frameID,
		Inputs:            pending,
		Confirmed:         true,
		TimestampUnixNano: nowUnixNano,
	}
	b.frames[frameID] = f
	b.pushReady(frameID)
	delete(b.pendingInputs, frameID)
	return f
}

// PendingInputs returns the inputs staged so far for frameID, without
// committing. Used by force-commit to fill in the players that did
// contribute before padding the rest.
func (b *Buffer) PendingInputs(frameID uint32) map[uint16][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingInputs[frameID]
}

// DiscardPending drops frameID's pending (uncommitted) inputs, called
// once a force-commit has consumed them.
func (b *Buffer) DiscardPending(frameID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pendingInputs, frameID)
}

// StoreFrame records an already-built Frame (used by force-commit,
// which builds the Frame itself to mark it unconfirmed).
func (b *Buffer) StoreFrame(f *Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames[f.FrameID] = f
	b.pushReady(f.FrameID)
}

func (b *Buffer) pushReady(frameID uint32) {
	b.readyQueue = append(b.readyQueue, frameID)
	if len(b.readyQueue) > MaxReadyQueue {
		b.readyQueue = b.readyQueue[len(b.readyQueue)-MaxReadyQueue:]
	}
}

// GetFrame returns a committed frame by ID, or nil.
func (b *Buffer) GetFrame(frameID uint32) *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames[frameID]
}

// NextReadyFrame pops and returns the oldest ready frame ID's Frame,
// or nil if the ready queue is empty.
func (b *Buffer) NextReadyFrame() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readyQueue) == 0 {
		return nil
	}
	frameID := b.readyQueue[0]
	b.readyQueue = b.readyQueue[1:]
	return b.frames[frameID]
}

// CleanupOldFrames drops committed and pending entries older than
// oldestFrame to bound memory growth over a long-lived room.
func (b *Buffer) CleanupOldFrames(oldestFrame uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.frames {
		if id < oldestFrame {
			delete(b.frames, id)
		}
	}
	for id := range b.pendingInputs {
		if id < oldestFrame {
			delete(b.pendingInputs, id)
		}
	}
}

// Status reports buffer occupancy, surfaced on /stats and via metrics.
type Status struct {
	ReadyFrames   int
	PendingFrames int
	TotalStored   int
}

// Status returns a snapshot of the buffer's current occupancy.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		ReadyFrames:   len(b.readyQueue),
		PendingFrames: len(b.pendingInputs),
		TotalStored:   len(b.frames),
	}
}
