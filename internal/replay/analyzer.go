package replay

import "sort"

// Analyzer computes diagnostics over a recorded session: how often
// each player pressed inputs, where frame pacing stalled, and so on.
// Grounded on original_source/core/replay.py's ReplayAnalyzer.
type Analyzer struct {
	recorder *Recorder
}

// NewAnalyzer wraps a recorder for analysis.
func NewAnalyzer(r *Recorder) *Analyzer {
	return &Analyzer{recorder: r}
}

// InputFrequency counts how many recorded frames carried a non-empty
// input for playerID.
func (a *Analyzer) InputFrequency(playerID uint16) int {
	count := 0
	for _, f := range a.recorder.Frames() {
		if data, ok := f.Inputs[playerID]; ok && len(data) > 0 {
			count++
		}
	}
	return count
}

// FrameTimes returns the wall-clock gap between each consecutive pair
// of recorded frames, in seconds.
func (a *Analyzer) FrameTimes() []float64 {
	frames := a.recorder.Frames()
	if len(frames) < 2 {
		return nil
	}
	times := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		times = append(times, frames[i].Timestamp-frames[i-1].Timestamp)
	}
	return times
}

// AverageFrameTime returns the mean gap between recorded frames.
func (a *Analyzer) AverageFrameTime() float64 {
	times := a.FrameTimes()
	if len(times) == 0 {
		return 0
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return sum / float64(len(times))
}

// LagFrame identifies a recorded frame whose gap from its predecessor
// exceeded the detection threshold.
type LagFrame struct {
	FrameID  uint32
	GapSecs  float64
}

// DetectLagFrames returns every frame whose gap from its predecessor
// exceeds thresholdSecs, in recording order.
func (a *Analyzer) DetectLagFrames(thresholdSecs float64) []LagFrame {
	frames := a.recorder.Frames()
	var lagged []LagFrame
	for i := 1; i < len(frames); i++ {
		gap := frames[i].Timestamp - frames[i-1].Timestamp
		if gap > thresholdSecs {
			lagged = append(lagged, LagFrame{FrameID: frames[i].FrameID, GapSecs: gap})
		}
	}
	return lagged
}

// Report summarizes a recording for human or automated review.
type Report struct {
	Header           Header
	FrameCount       int
	AverageFrameTime float64
	LagFrames        []LagFrame
	InputFrequency   map[uint16]int
}

// GenerateReport builds a full Report over the recording, with default
// lag detection at a 100ms threshold.
func (a *Analyzer) GenerateReport() Report {
	frames := a.recorder.Frames()
	freq := make(map[uint16]int)
	for _, id := range a.recorder.header.PlayerIDs {
		freq[id] = a.InputFrequency(id)
	}

	ids := make([]uint16, 0, len(freq))
	for id := range freq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ordered := make(map[uint16]int, len(freq))
	for _, id := range ids {
		ordered[id] = freq[id]
	}

	return Report{
		Header:           a.recorder.header,
		FrameCount:       len(frames),
		AverageFrameTime: a.AverageFrameTime(),
		LagFrames:        a.DetectLagFrames(0.1),
		InputFrequency:   ordered,
	}
}
