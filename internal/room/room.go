package room

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fsync/server/internal/frame"
	"github.com/fsync/server/internal/metrics"
	"github.com/fsync/server/internal/protocol"
)

// MaxPlayersPerRoom is the default room capacity (spec §6 defaults).
const MaxPlayersPerRoom = 4

// FrameDeadline is the default per-frame force-commit deadline.
const FrameDeadline = 1 * time.Second

// TickRate is the lockstep tick frequency in Hz.
const TickRate = 30

// Room owns one lockstep game session: a set of player sessions and a
// frame engine that sequences their inputs. Room never runs physics —
// authority is entirely by input sequencing, per the spec's Non-goal of
// server-side simulation. Methods ending in "Unlocked" expect the
// caller already holds mu, mirroring the teacher's Room convention.
type Room struct {
	mu sync.RWMutex

	ID            string
	players       map[uint16]*Session
	frameEngine   *frame.Engine
	maxPlayers    int
	tickRate      int
	frameDeadline time.Duration

	createdAt  time.Time
	started    bool
	startFrame uint32

	deadlineSince time.Time // wall-clock time the current frame's first input arrived

	running  atomic.Bool
	stopChan chan struct{}

	log           *logrus.Entry
	metrics       *metrics.Registry
	sessionConfig protocol.SessionConfig
}

// NewRoom creates a room with the given ID and player capacity.
func NewRoom(id string, maxPlayers int, log *logrus.Entry) *Room {
	if maxPlayers <= 0 {
		maxPlayers = MaxPlayersPerRoom
	}
	return &Room{
		ID:            id,
		players:       make(map[uint16]*Session),
		frameEngine:   frame.NewEngine(0),
		maxPlayers:    maxPlayers,
		tickRate:      TickRate,
		frameDeadline: FrameDeadline,
		createdAt:     time.Now(),
		stopChan:      make(chan struct{}),
		log:           log.WithField("room", id),
	}
}

// SetMetrics attaches a metrics registry the room will report frame
// commit/force/reject counters to. Optional — a room with no registry
// attached skips every metrics call.
func (r *Room) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// Configure applies process-wide session configuration to this room:
// the tick rate and force-commit deadline it runs its loop at, and the
// SessionConfig every joining peer is handed in joinSuccess so peers
// can verify they're running identical physics/entity constants (spec
// §6/§9). Must be called before Start — the tick loop reads tickRate
// once at startup.
func (r *Room) Configure(tickRate int, cfg protocol.SessionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionConfig = cfg
	if tickRate > 0 {
		r.tickRate = tickRate
	}
	if cfg.FrameDeadlineMillis > 0 {
		r.frameDeadline = time.Duration(cfg.FrameDeadlineMillis) * time.Millisecond
	}
}

// Start begins the room's tick loop in its own goroutine. Safe to call
// multiple times — subsequent calls are no-ops.
func (r *Room) Start() {
	if r.running.Swap(true) {
		return
	}
	go r.tickLoop()
}

// Stop halts the tick loop. Safe to call multiple times.
func (r *Room) Stop() {
	if !r.running.Swap(false) {
		return
	}
	close(r.stopChan)
}

// ErrRoomFull is returned by Join when the room is at capacity.
type ErrRoomFull struct{}

func (ErrRoomFull) Error() string { return "room is full" }

// Join adds a new session to the room, assigning it a stable numeric
// player index, and broadcasts playerJoined to the rest. Returns the
// new session and a joinSuccess payload ready to send to the caller.
func (r *Room) Join(playerID string, conn Connection) (*Session, protocol.JoinSuccessPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.maxPlayers {
		return nil, protocol.JoinSuccessPayload{}, ErrRoomFull{}
	}

	idx := PlayerIndexFromID(playerID)
	for _, exists := r.players[idx]; exists; _, exists = r.players[idx] {
		idx++
	}

	sess := NewSession(playerID, idx, r.ID, conn)
	r.players[idx] = sess
	r.frameEngine.PlayerCount = len(r.players)

	joined := protocol.PlayerJoinedPayload{PlayerID: idx, PlayerCount: len(r.players)}
	r.broadcastExceptUnlocked(protocol.TypePlayerJoined, joined, idx)

	indices := make([]uint16, 0, len(r.players))
	for id := range r.players {
		indices = append(indices, id)
	}
	success := protocol.JoinSuccessPayload{
		RoomID:      r.ID,
		PlayerID:    idx,
		PlayerCount: len(r.players),
		Players:     indices,
		TickRate:    r.tickRate,
		Config:      r.sessionConfig,
	}

	if !r.started && len(r.players) >= 2 {
		r.started = true
		r.startFrame = r.frameEngine.CurrentFrameID()
		r.broadcastUnlocked(protocol.TypeGameStart, protocol.GameStartPayload{StartFrame: r.startFrame})
	}

	r.log.WithField("player", playerID).Info("player joined")
	return sess, success, nil
}

// Leave removes a session from the room and broadcasts playerLeft.
// Safe to call with an unknown index.
func (r *Room) Leave(playerIndex uint16) {
	r.mu.Lock()
	sess, ok := r.players[playerIndex]
	if ok {
		delete(r.players, playerIndex)
		r.frameEngine.PlayerCount = len(r.players)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: sess.PlayerIndex})
	r.log.WithField("player", sess.PlayerID).Info("player left")
}

// IsEmpty reports whether the room has no players left.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

// CurrentFrameID returns the room's authoritative frame cursor, for
// anti-cheat frame-ahead validation upstream of HandleInput.
func (r *Room) CurrentFrameID() uint32 {
	return r.frameEngine.CurrentFrameID()
}

// PlayerCount returns the current session count.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// HandleInput validates session-level ordering and stages one player's
// encoded input for its target frame. Anti-cheat byte/range/APM
// validation happens upstream in protocol.InputValidator; this method
// only enforces the per-session strictly-increasing frameId invariant.
func (r *Room) HandleInput(playerIndex uint16, frameID uint32, data []byte) {
	r.mu.RLock()
	sess, ok := r.players[playerIndex]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if !sess.AcceptInputFrame(frameID) {
		if r.metrics != nil {
			r.metrics.InputsRejected.WithLabelValues("replay_guard").Inc()
		}
		return
	}

	r.mu.Lock()
	if r.deadlineSince.IsZero() {
		r.deadlineSince = time.Now()
	}
	r.mu.Unlock()

	r.frameEngine.AddInput(frameID, playerIndex, data)
}

// Reconnect replies with every committed frame after lastFrame, for a
// session resuming after a drop.
func (r *Room) Reconnect(sess *Session, lastFrame uint32) {
	frames := r.frameEngine.FramesSince(lastFrame + 1)
	payload := protocol.SyncFramesPayload{
		Frames:       make([]protocol.GameFramePayload, 0, len(frames)),
		CurrentFrame: r.frameEngine.CurrentFrameID(),
	}
	for _, f := range frames {
		payload.Frames = append(payload.Frames, gameFramePayload(f))
	}
	if err := sess.Send(protocol.TypeSyncFrames, payload); err != nil {
		r.log.WithError(err).Warn("reconnect sync send failed")
		return
	}
	if r.metrics != nil {
		r.metrics.Reconnects.Inc()
	}
}

// tickLoop drives the 30Hz lockstep commit/broadcast cycle. Per tick it
// tries a full commit, falls back to a forced commit once the frame's
// deadline has elapsed, and broadcasts at most one frame per period; a
// period in which the frame is incomplete and the deadline has not yet
// elapsed broadcasts nothing.
func (r *Room) tickLoop() {
	r.mu.RLock()
	tickRate := r.tickRate
	r.mu.RUnlock()
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.runTick()
		}
	}
}

func (r *Room) runTick() {
	r.mu.RLock()
	started := r.started
	playerCount := len(r.players)
	r.mu.RUnlock()

	if !started || playerCount < 1 {
		return
	}

	now := time.Now().UnixNano()
	f := r.frameEngine.Tick(now)
	if f == nil {
		r.mu.RLock()
		since := r.deadlineSince
		r.mu.RUnlock()
		if since.IsZero() || time.Since(since) < r.frameDeadline {
			return
		}
		f = r.frameEngine.ForceTick(now)
		if r.metrics != nil {
			r.metrics.FramesForced.Inc()
		}
	} else if r.metrics != nil {
		r.metrics.FramesCommitted.Inc()
	}

	r.mu.Lock()
	deadlineSince := r.deadlineSince
	r.deadlineSince = time.Time{}
	r.mu.Unlock()

	if r.metrics != nil && !deadlineSince.IsZero() {
		r.metrics.FrameCommitLatency.Observe(time.Since(deadlineSince).Seconds())
	}

	r.broadcast(protocol.TypeGameFrame, gameFramePayload(f))
}

func gameFramePayload(f *frame.Frame) protocol.GameFramePayload {
	inputs := make(map[uint16][]byte, len(f.Inputs))
	for id, data := range f.Inputs {
		inputs[id] = data
	}
	return protocol.GameFramePayload{
		FrameID:   f.FrameID,
		Inputs:    inputs,
		Confirmed: f.Confirmed,
	}
}

// broadcast sends an envelope to every current member.
func (r *Room) broadcast(msgType string, payload any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastUnlocked(msgType, payload)
}

func (r *Room) broadcastUnlocked(msgType string, payload any) {
	for _, sess := range r.players {
		if err := sess.Send(msgType, payload); err != nil {
			r.log.WithError(err).WithField("player", sess.PlayerID).Warn("broadcast send failed")
		}
	}
}

func (r *Room) broadcastExceptUnlocked(msgType string, payload any, exceptIndex uint16) {
	for idx, sess := range r.players {
		if idx == exceptIndex {
			continue
		}
		if err := sess.Send(msgType, payload); err != nil {
			r.log.WithError(err).WithField("player", sess.PlayerID).Warn("broadcast send failed")
		}
	}
}
