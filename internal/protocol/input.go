// Package protocol implements the wire codec for player input and the
// MsgPack control-message envelopes, plus the server-side input
// validator (anti-cheat acceptance rules).
package protocol

import (
	"encoding/binary"
	"errors"
)

// Input flag bits, set from the client's pressed keys/abilities.
const (
	FlagMoveUp uint8 = 1 << iota
	FlagMoveDown
	FlagMoveLeft
	FlagMoveRight
	FlagAttack
	FlagSkill1
	FlagSkill2
	FlagJump
)

// HeaderSize is the fixed portion of the wire layout: frameId(4) +
// playerId(2) + flags(1) + targetX(4) + targetY(4) + extraLen(1).
const HeaderSize = 16

// MaxInputSize bounds the total encoded size (header + extra).
const MaxInputSize = 1024

// ErrShortInput is returned when fewer than HeaderSize bytes are
// present to decode.
var ErrShortInput = errors.New("protocol: input shorter than header")

// PlayerInput is one player's input for one frame. TargetX/TargetY are
// Q16.16 fixed-point, matching fixedpoint.Fixed's raw representation.
type PlayerInput struct {
	FrameID  uint32
	PlayerID uint16
	Flags    uint8
	TargetX  int32
	TargetY  int32
	Extra    []byte
}

// HasFlag reports whether a flag bit is set.
func (p PlayerInput) HasFlag(flag uint8) bool {
	return p.Flags&flag != 0
}

// Encode serializes the input to its big-endian wire form. ExtraLen is
// derived from len(Extra); an Extra longer than 255 bytes is truncated
// to its first 255 bytes, since ExtraLen is a single byte. Encode does
// not check the total against MaxInputSize.
func (p PlayerInput) Encode() []byte {
	extraLen := len(p.Extra)
	if extraLen > 255 {
		extraLen = 255
	}
	buf := make([]byte, HeaderSize+extraLen)
	binary.BigEndian.PutUint32(buf[0:4], p.FrameID)
	binary.BigEndian.PutUint16(buf[4:6], p.PlayerID)
	buf[6] = p.Flags
	binary.BigEndian.PutUint32(buf[7:11], uint32(p.TargetX))
	binary.BigEndian.PutUint32(buf[11:15], uint32(p.TargetY))
	buf[15] = uint8(extraLen)
	copy(buf[16:], p.Extra[:extraLen])
	return buf
}

// Decode parses the wire form produced by Encode. It fails with
// ErrShortInput when fewer than HeaderSize bytes are present;
// otherwise Extra is truncated to min(remaining, extraLen) rather than
// erroring, matching the reference implementation's tolerance for a
// truncated trailing payload.
func Decode(data []byte) (PlayerInput, error) {
	if len(data) < HeaderSize {
		return PlayerInput{}, ErrShortInput
	}

	p := PlayerInput{
		FrameID:  binary.BigEndian.Uint32(data[0:4]),
		PlayerID: binary.BigEndian.Uint16(data[4:6]),
		Flags:    data[6],
		TargetX:  int32(binary.BigEndian.Uint32(data[7:11])),
		TargetY:  int32(binary.BigEndian.Uint32(data[11:15])),
	}

	extraLen := int(data[15])
	remaining := data[HeaderSize:]
	n := extraLen
	if n > len(remaining) {
		n = len(remaining)
	}
	if n > 0 {
		p.Extra = append([]byte(nil), remaining[:n]...)
	}
	return p, nil
}

// InputManager tracks one player's in-progress and pending-to-send
// inputs on the client. BeginFrame/EndFrame bracket a frame's worth of
// input collection exactly as the reference InputManager does.
type InputManager struct {
	playerID      uint16
	current       *PlayerInput
	parsedHistory map[uint32]PlayerInput
	maxHistory    int
	pending       []PlayerInput
}

// NewInputManager creates a manager for the given local player.
func NewInputManager(playerID uint16) *InputManager {
	return &InputManager{
		playerID:      playerID,
		parsedHistory: make(map[uint32]PlayerInput),
		maxHistory:    300,
	}
}

// BeginFrame opens collection for frameID, discarding any
// in-progress (never-ended) input.
func (m *InputManager) BeginFrame(frameID uint32) {
	m.current = &PlayerInput{FrameID: frameID, PlayerID: m.playerID}
}

// SetInput fills in the current frame's flags/target/extra.
func (m *InputManager) SetInput(flags uint8, targetX, targetY int32, extra []byte) {
	if m.current == nil {
		return
	}
	m.current.Flags = flags
	m.current.TargetX = targetX
	m.current.TargetY = targetY
	m.current.Extra = extra
}

// EndFrame appends the current input to the parsed history (evicting
// the oldest entry past maxHistory) and to the pending send queue, then
// clears current. Both hold PlayerInput values; EndFrame does not
// encode them to wire bytes. Returns nil if no BeginFrame is open.
func (m *InputManager) EndFrame() *PlayerInput {
	if m.current == nil {
		return nil
	}
	input := *m.current

	m.parsedHistory[input.FrameID] = input
	if len(m.parsedHistory) > m.maxHistory {
		var oldest uint32
		first := true
		for fid := range m.parsedHistory {
			if first || fid < oldest {
				oldest = fid
				first = false
			}
		}
		delete(m.parsedHistory, oldest)
	}

	m.pending = append(m.pending, input)
	m.current = nil
	return &input
}

// PendingInputs drains and returns the send queue.
func (m *InputManager) PendingInputs() []PlayerInput {
	drained := m.pending
	m.pending = nil
	return drained
}

// ParsedInput returns the locally recorded input for frameID, used to
// validate the server's echo of the local player's own frame.
func (m *InputManager) ParsedInput(frameID uint32) (PlayerInput, bool) {
	p, ok := m.parsedHistory[frameID]
	return p, ok
}
