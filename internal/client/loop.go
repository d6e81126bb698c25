package client

import (
	"context"
	"time"

	"github.com/fsync/server/internal/frame"
)

// logicTickRate matches the server's lockstep rate — the logic loop
// polls for an executable frame at the same 30Hz cadence per §4.7.
const logicTickRate = 30

// Run drives the session's logic loop until ctx is cancelled or the
// frame channel closes. predictLocal is called once per tick with the
// next frame ID to predict and should return the local player's encoded
// input for that frame; the prediction is applied and the input sent.
//
// Server frames are taken off the frame channel as they arrive, not on
// the ticker. They are not reconciled the instant they arrive — they
// first sit in a bufferSize-deep queue (spec §4.3's "buffered
// execution"), and a frame is reconciled against the local prediction
// only once bufferSize later frames have arrived behind it.
func (s *Session) Run(ctx context.Context, predictLocal func(frameID uint32) []byte) {
	ticker := time.NewTicker(time.Second / logicTickRate)
	defer ticker.Stop()

	var lastConfirmedFrame uint32
	nextPredict := uint32(0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return

		case f, ok := <-s.frames:
			if !ok {
				return
			}
			s.frameBuffer = append(s.frameBuffer, f)
			for len(s.frameBuffer) > s.bufferSize {
				ready := s.frameBuffer[0]
				s.frameBuffer = s.frameBuffer[1:]
				s.predictor.OnServerFrame(ready, s.otherIDs)
				if ready.FrameID > lastConfirmedFrame {
					lastConfirmedFrame = ready.FrameID
				}
			}

		case <-ticker.C:
			myInput := predictLocal(nextPredict)
			if p := s.predictor.Predict(nextPredict, myInput, s.otherIDs); p != nil {
				if err := s.SendInput(nextPredict, myInput); err != nil {
					s.log.WithError(err).Warn("send input failed")
				}
				nextPredict++
			}
			s.renderer.OnLogicFrame()
		}
	}
}

// LastConfirmedFrame returns the highest FrameID among frames (0 if
// frames is empty), e.g. as the lastFrame of a reconnect after a drop.
// It reads only the frames passed in, not any state of the session.
func (s *Session) LastConfirmedFrame(frames []*frame.Frame) uint32 {
	var max uint32
	for _, f := range frames {
		if f.FrameID > max {
			max = f.FrameID
		}
	}
	return max
}
