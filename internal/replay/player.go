package replay

// Player steps through a recorded session frame by frame, driving
// playback callbacks the way a UI scrubber or headless verifier would.
// Grounded on original_source/core/replay.py's ReplayPlayer.
type Player struct {
	recorder *Recorder
	index    int
	playing  bool
	paused   bool

	onFrame    func(Frame)
	onComplete func()
}

// NewPlayer wraps an already-loaded recorder for playback.
func NewPlayer(r *Recorder) *Player {
	return &Player{recorder: r}
}

// LoadPlayer loads a replay file and wraps it for playback in one step.
func LoadPlayer(path string) (*Player, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewPlayer(r), nil
}

// OnFrame sets the callback invoked with each frame as it's consumed.
func (p *Player) OnFrame(fn func(Frame)) { p.onFrame = fn }

// OnComplete sets the callback invoked once playback reaches the end.
func (p *Player) OnComplete(fn func()) { p.onComplete = fn }

// Play starts or resumes playback from the current position.
func (p *Player) Play() {
	p.playing = true
	p.paused = false
}

// Pause suspends playback without resetting position.
func (p *Player) Pause() { p.paused = true }

// Resume continues playback from where it was paused.
func (p *Player) Resume() { p.paused = false }

// Stop halts playback and rewinds to the first frame.
func (p *Player) Stop() {
	p.playing = false
	p.paused = false
	p.index = 0
}

// NextFrame advances to and returns the next frame, invoking OnFrame.
// Returns (Frame{}, false) once playback is stopped, paused, or past
// the end — invoking OnComplete exactly once when the end is reached.
func (p *Player) NextFrame() (Frame, bool) {
	if !p.playing || p.paused {
		return Frame{}, false
	}
	frames := p.recorder.Frames()
	if p.index >= len(frames) {
		if p.onComplete != nil {
			p.onComplete()
		}
		p.playing = false
		return Frame{}, false
	}

	f := frames[p.index]
	p.index++
	if p.onFrame != nil {
		p.onFrame(f)
	}
	return f, true
}

// SeekToFrame jumps playback to the first recorded frame with FrameID
// >= frameID, or past the end if none qualifies.
func (p *Player) SeekToFrame(frameID uint32) {
	frames := p.recorder.Frames()
	for i, f := range frames {
		if f.FrameID >= frameID {
			p.index = i
			return
		}
	}
	p.index = len(frames)
}

// SeekToTime jumps playback to the first recorded frame at or after
// seconds since recording start.
func (p *Player) SeekToTime(seconds float64) {
	frames := p.recorder.Frames()
	target := p.recorder.header.StartTime + seconds
	for i, f := range frames {
		if f.Timestamp >= target {
			p.index = i
			return
		}
	}
	p.index = len(frames)
}

// Progress returns playback position as a fraction in [0, 1].
func (p *Player) Progress() float64 {
	total := len(p.recorder.Frames())
	if total == 0 {
		return 0
	}
	return float64(p.index) / float64(total)
}

// CurrentTime returns the elapsed recording time, in seconds, at the
// current playback position.
func (p *Player) CurrentTime() float64 {
	frames := p.recorder.Frames()
	if p.index == 0 || len(frames) == 0 {
		return 0
	}
	i := p.index
	if i > len(frames) {
		i = len(frames)
	}
	return frames[i-1].Timestamp - p.recorder.header.StartTime
}

// TotalFrames returns the number of frames in the loaded recording.
func (p *Player) TotalFrames() int { return len(p.recorder.Frames()) }
