// Package room implements server-side room lifecycle: player sessions,
// the per-room lockstep tick loop, and matchmaking. The room never runs
// authoritative physics — it only sequences and broadcasts inputs via
// internal/frame; simulation is reproduced identically by every peer.
package room

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/fsync/server/internal/protocol"
)

// MessageRateLimit is the default per-connection wall-clock message
// budget: a token bucket refilled continuously at 100 tokens/second with
// a burst of 100. It is not a sliding window: within one second, up to
// the full burst plus that second's refill (about 200 messages) can pass.
const MessageRateLimit = 100

// Connection abstracts the transport so Session can be tested without a
// real WebSocket. Mirrors the teacher's PlayerConnection interface.
type Connection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// Session is one connected player's server-side state: identity,
// transport, replay-guard cursor, and message-rate limiter. Mirrors the
// teacher's Player, generalized from car-racing fields to the lockstep
// session invariants in the spec (playerId, roomId, lastInputFrame).
type Session struct {
	mu sync.Mutex

	PlayerID    string
	PlayerIndex uint16
	RoomID      string
	Connection  Connection

	lastInputFrame int64 // -1 until the first input is accepted
	limiter        *rate.Limiter
}

// NewSession creates a session for playerID/playerIndex in roomID,
// wired to conn. lastInputFrame starts at -1 per the spec invariant.
func NewSession(playerID string, playerIndex uint16, roomID string, conn Connection) *Session {
	return &Session{
		PlayerID:       playerID,
		PlayerIndex:    playerIndex,
		RoomID:         roomID,
		Connection:     conn,
		lastInputFrame: -1,
		limiter:        rate.NewLimiter(rate.Limit(MessageRateLimit), MessageRateLimit),
	}
}

// AllowMessage reports whether the caller may process one more inbound
// message right now. Exceeding messages are dropped without disconnect,
// per the spec's message-dispatch rate limit.
func (s *Session) AllowMessage() bool {
	return s.limiter.Allow()
}

// AcceptInputFrame enforces the session invariant that frameId strictly
// increases between inputs from the same player. Returns false (reject,
// do not advance) for a replayed or out-of-order frame ID.
func (s *Session) AcceptInputFrame(frameID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(frameID) <= s.lastInputFrame {
		return false
	}
	s.lastInputFrame = int64(frameID)
	return true
}

// LastInputFrame returns the last accepted frame ID, or -1 if none yet.
func (s *Session) LastInputFrame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInputFrame
}

// Send encodes msgType/payload as an envelope and writes it to this
// session's connection.
func (s *Session) Send(msgType string, payload any) error {
	data, err := protocol.EncodeEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return s.Connection.Send(data)
}

// PlayerIndexFromID derives a numeric player index deterministically
// from a player ID string, per the spec's dispatch rule: the integer
// suffix after the last underscore, or a hash modulo 1000 if absent.
func PlayerIndexFromID(playerID string) uint16 {
	if idx, ok := suffixInt(playerID); ok {
		return uint16(idx % 1000)
	}
	return uint16(fnv32(playerID) % 1000)
}

func suffixInt(s string) (int, bool) {
	i := len(s) - 1
	for i >= 0 && s[i] >= '0' && s[i] <= '9' {
		i--
	}
	if i == len(s)-1 || i < 0 || s[i] != '_' {
		return 0, false
	}
	n := 0
	for j := i + 1; j < len(s); j++ {
		n = n*10 + int(s[j]-'0')
	}
	return n, true
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
