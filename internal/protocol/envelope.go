package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope message types, exchanged as MsgPack-encoded
// {"type": ..., "payload": ...} maps over the WebSocket control
// channel. Raw per-frame PlayerInput bytes travel inside the Input
// envelope's Payload field rather than as their own WebSocket message,
// so a single connection only ever speaks one wire format.
const (
	TypeAuth          = "auth"
	TypeJoinSuccess   = "joinSuccess"
	TypePlayerJoined  = "playerJoined"
	TypePlayerLeft    = "playerLeft"
	TypeGameStart     = "gameStart"
	TypeInput         = "input"
	TypeLeave         = "leave"
	TypeReconnect     = "reconnect"
	TypeSyncFrames    = "syncFrames"
	TypeGameFrame     = "gameFrame"
	TypeError         = "error"
)

// WebSocket close codes for application-level rejections, in the
// private-use range above 4000 per RFC 6455.
const (
	CloseAuthFailed  = 4001
	CloseAuthTimeout = 4002
	CloseRoomFull    = 4003
)

// Envelope is the outer MsgPack frame every control message is wrapped
// in. Payload is left as RawMessage-equivalent (msgpack.RawMessage) so
// the type field can be inspected before committing to a payload shape.
type Envelope struct {
	Type    string          `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// EncodeEnvelope packs a typed payload into an Envelope and marshals
// the whole thing to MsgPack bytes.
func EncodeEnvelope(typ string, payload any) ([]byte, error) {
	payloadBytes, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload for %q: %w", typ, err)
	}
	return msgpack.Marshal(Envelope{Type: typ, Payload: payloadBytes})
}

// DecodeEnvelope unpacks the outer envelope without touching the
// payload, so the caller can dispatch on Type before unmarshaling it
// into a concrete struct via DecodePayload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if err := msgpack.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("protocol: unmarshal %q payload: %w", env.Type, err)
	}
	return nil
}

// AuthPayload is sent by the client immediately after connecting,
// naming the player and the room it wants to join.
type AuthPayload struct {
	PlayerID string `msgpack:"playerId"`
	RoomID   string `msgpack:"roomId"`
}

// JoinSuccessPayload confirms room assignment and hands the joining
// client its player ID, the room's current roster, and the session
// configuration every peer must run with (spec §6/§9: "peer sessions
// MUST share the same configuration or reject each other").
type JoinSuccessPayload struct {
	PlayerID    uint16        `msgpack:"playerId"`
	RoomID      string        `msgpack:"roomId"`
	Players     []uint16      `msgpack:"players"`
	PlayerCount int           `msgpack:"playerCount"`
	TickRate    int           `msgpack:"tickRate"`
	RNGSeed     uint32        `msgpack:"rngSeed"`
	StartFrame  uint32        `msgpack:"startFrame"`
	Config      SessionConfig `msgpack:"config"`
}

// SessionConfig is the subset of process configuration that must be
// identical on every peer for the simulation to stay in lockstep:
// physics constants, entity defaults, and fixed-point precision, all
// in wire-safe primitive form (fixedpoint values travel as their raw
// int32 and are reconstituted via fixedpoint.FromRaw on arrival).
type SessionConfig struct {
	FrameDeadlineMillis int `msgpack:"frameDeadlineMillis"`
	BufferSize          int `msgpack:"bufferSize"`
	MaxAPM              int `msgpack:"maxApm"`

	Gravity     int32 `msgpack:"gravity"`
	Friction    int32 `msgpack:"friction"`
	MaxVelocity int32 `msgpack:"maxVelocity"`
	WorldWidth  int32 `msgpack:"worldWidth"`
	WorldHeight int32 `msgpack:"worldHeight"`
	CellSize    int32 `msgpack:"cellSize"`

	PlayerSpeed       int32 `msgpack:"playerSpeed"`
	EntityWidth       int32 `msgpack:"entityWidth"`
	EntityHeight      int32 `msgpack:"entityHeight"`
	AttackRange       int32 `msgpack:"attackRange"`
	AttackDamage      int   `msgpack:"attackDamage"`
	DefaultHP         int   `msgpack:"defaultHp"`
	MaxPlayersPerRoom int   `msgpack:"maxPlayersPerRoom"`

	FractionBits uint `msgpack:"fractionBits"`
}

// PlayerJoinedPayload is broadcast to existing room members.
type PlayerJoinedPayload struct {
	PlayerID    uint16 `msgpack:"playerId"`
	PlayerCount int    `msgpack:"playerCount"`
}

// PlayerLeftPayload is broadcast when a player disconnects or is
// kicked.
type PlayerLeftPayload struct {
	PlayerID uint16 `msgpack:"playerId"`
	Reason   string `msgpack:"reason"`
}

// GameStartPayload signals that the room has reached two players and
// its lockstep tick loop now commits frames.
type GameStartPayload struct {
	StartFrame uint32 `msgpack:"startFrame"`
	RNGSeed    uint32 `msgpack:"rngSeed"`
}

// InputPayload wraps a client's encoded PlayerInput bytes for
// transport inside the control channel, tagged with the logical frame
// it targets.
type InputPayload struct {
	FrameID   uint32 `msgpack:"frameId"`
	InputData []byte `msgpack:"inputData"`
}

// LeavePayload is sent by a client intentionally leaving the room.
type LeavePayload struct{}

// ReconnectPayload lets a previously dropped player resume a session,
// requesting every committed frame after lastFrame.
type ReconnectPayload struct {
	LastFrame uint32 `msgpack:"lastFrame"`
}

// SyncFramesPayload answers a reconnect (or a client that fell behind)
// with the run of committed frames (confirmed or forced) it missed.
type SyncFramesPayload struct {
	Frames       []GameFramePayload `msgpack:"frames"`
	CurrentFrame uint32             `msgpack:"currentFrame"`
}

// GameFramePayload is the per-tick broadcast: one confirmed (or
// force-committed) frame's worth of encoded inputs, keyed by the
// numeric player index the room assigned at join time.
type GameFramePayload struct {
	FrameID   uint32            `msgpack:"frameId"`
	Inputs    map[uint16][]byte `msgpack:"inputs"`
	Confirmed bool              `msgpack:"confirmed"`
}

// ErrorPayload reports a rejected request without closing the
// connection (contrast with the Close* codes, which do).
type ErrorPayload struct {
	Code    int    `msgpack:"code"`
	Message string `msgpack:"message"`
}
