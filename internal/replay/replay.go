// Package replay implements the FSRP/FSRJ replay file format: an
// input-only recording (never full state) that any peer can replay to
// reconstruct the exact frame stream of a past session, since replay
// plus deterministic simulation fully determines the outcome.
package replay

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsync/server/internal/frame"
)

// Magic bytes identifying the two on-disk variants.
var (
	MagicCompressed = []byte("FSRP")
	MagicUncompressed = []byte("FSRJ")
)

// Header describes the recorded session. Mirrors
// original_source/core/replay.py's ReplayHeader field-for-field.
type Header struct {
	Version     string         `json:"version"`
	GameName    string         `json:"game_name"`
	PlayerCount int            `json:"player_count"`
	PlayerIDs   []uint16       `json:"player_ids"`
	StartTime   float64        `json:"start_time"`
	Duration    float64        `json:"duration"`
	FrameCount  int            `json:"frame_count"`
	Seed        uint32         `json:"seed"`
	Metadata    map[string]any `json:"metadata"`
}

// Frame is one recorded tick's inputs, keyed by player ID. The wire
// encoding abbreviates field names ("f"/"i"/"t") to keep replay files
// small, matching the reference's ReplayFrame.to_dict/from_dict.
type Frame struct {
	FrameID   uint32
	Inputs    map[uint16][]byte
	Timestamp float64
}

type wireFrame struct {
	F uint32            `json:"f"`
	I map[string][]byte `json:"i"`
	T float64           `json:"t"`
}

func (f Frame) toWire() wireFrame {
	inputs := make(map[string][]byte, len(f.Inputs))
	for id, data := range f.Inputs {
		inputs[fmt.Sprint(id)] = data
	}
	return wireFrame{F: f.FrameID, I: inputs, T: f.Timestamp}
}

func (w wireFrame) toFrame() (Frame, error) {
	inputs := make(map[uint16][]byte, len(w.I))
	for k, v := range w.I {
		var id uint16
		if _, err := fmt.Sscanf(k, "%d", &id); err != nil {
			return Frame{}, fmt.Errorf("replay: bad player key %q: %w", k, err)
		}
		inputs[id] = v
	}
	return Frame{FrameID: w.F, Inputs: inputs, Timestamp: w.T}, nil
}

type wireFile struct {
	Header Header      `json:"header"`
	Frames []wireFrame `json:"frames"`
}

// Recorder captures a session's input stream frame by frame. It never
// records full simulation state — the file stays small even for long
// sessions, and any deterministic peer can replay it bit-identically.
type Recorder struct {
	header      Header
	frames      []Frame
	isRecording bool
	playerIDs   []uint16
}

// NewRecorder creates a recorder for a session of playerCount seats
// seeded with seed.
func NewRecorder(playerCount int, seed uint32) *Recorder {
	return &Recorder{
		header: Header{
			Version:     "1.0",
			GameName:    "frame-sync-game",
			PlayerCount: playerCount,
			Seed:        seed,
			StartTime:   nowUnix(),
		},
	}
}

// StartRecording begins capturing frames for playerIDs, attaching
// optional metadata to the header.
func (r *Recorder) StartRecording(playerIDs []uint16, metadata map[string]any) {
	r.playerIDs = playerIDs
	r.header.PlayerIDs = playerIDs
	r.header.StartTime = nowUnix()
	if metadata == nil {
		metadata = map[string]any{}
	}
	r.header.Metadata = metadata
	r.frames = r.frames[:0]
	r.isRecording = true
}

// RecordFrame appends one frame's inputs, copying the map so later
// mutation by the caller can't corrupt the recording. No-op if
// recording hasn't started.
func (r *Recorder) RecordFrame(frameID uint32, inputs map[uint16][]byte) {
	if !r.isRecording {
		return
	}
	copied := make(map[uint16][]byte, len(inputs))
	for id, data := range inputs {
		copied[id] = append([]byte(nil), data...)
	}
	r.frames = append(r.frames, Frame{FrameID: frameID, Inputs: copied, Timestamp: nowUnix()})
}

// RecordCommittedFrame records a frame.Frame straight off the room's
// broadcast path, so a room can attach a Recorder without the caller
// re-deriving the inputs map itself.
func (r *Recorder) RecordCommittedFrame(f *frame.Frame) {
	r.RecordFrame(f.FrameID, f.Inputs)
}

// StopRecording finalizes the header's duration/frameCount from the
// frames captured so far.
func (r *Recorder) StopRecording() {
	if len(r.frames) > 0 {
		last := r.frames[len(r.frames)-1]
		r.header.Duration = last.Timestamp - r.header.StartTime
		r.header.FrameCount = len(r.frames)
	}
	r.isRecording = false
}

// Save stops recording (if still active) and writes the replay file.
// compress selects the FSRP (zlib) variant over FSRJ (raw JSON).
func (r *Recorder) Save(path string, compress bool) error {
	r.StopRecording()

	wire := wireFile{Header: r.header, Frames: make([]wireFrame, len(r.frames))}
	for i, f := range r.frames {
		wire.Frames[i] = f.toWire()
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("replay: marshal: %w", err)
	}

	var out bytes.Buffer
	if compress {
		out.Write(MagicCompressed)
		zw := zlib.NewWriter(&out)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("replay: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("replay: compress: %w", err)
		}
	} else {
		out.Write(MagicUncompressed)
		out.Write(payload)
	}

	return os.WriteFile(path, out.Bytes(), 0o644)
}

// Load reads a replay file, transparently inflating the FSRP variant.
func Load(path string) (*Recorder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", path, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("replay: file too short to contain a magic header")
	}

	magic, body := raw[:4], raw[4:]
	var payload []byte
	switch {
	case bytes.Equal(magic, MagicCompressed):
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("replay: open compressed stream: %w", err)
		}
		defer zr.Close()
		payload, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("replay: decompress: %w", err)
		}
	case bytes.Equal(magic, MagicUncompressed):
		payload = body
	default:
		return nil, fmt.Errorf("replay: invalid magic %q", magic)
	}

	var wire wireFile
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("replay: unmarshal: %w", err)
	}

	frames := make([]Frame, 0, len(wire.Frames))
	for _, w := range wire.Frames {
		f, err := w.toFrame()
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}

	return &Recorder{header: wire.Header, frames: frames, playerIDs: wire.Header.PlayerIDs}, nil
}

// Header returns the recording's header.
func (r *Recorder) Header() Header { return r.header }

// Frames returns every recorded frame, in recording order.
func (r *Recorder) Frames() []Frame { return r.frames }

// Stats summarizes the recording for diagnostics.
type Stats struct {
	FrameCount  int
	Duration    float64
	PlayerCount int
}

// Stats returns a snapshot of recording progress/size.
func (r *Recorder) Stats() Stats {
	return Stats{FrameCount: len(r.frames), Duration: r.header.Duration, PlayerCount: r.header.PlayerCount}
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
