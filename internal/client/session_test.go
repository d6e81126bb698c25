package client

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsync/server/internal/frame"
	"github.com/fsync/server/internal/protocol"
)

func testSession() *Session {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &Session{
		log:      log.WithField("test", true),
		sendChan: make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		frames:   make(chan *frame.Frame, 8),
		otherIDs: []uint16{1},
	}
}

func TestDispatchGameFrameDelivers(t *testing.T) {
	s := testSession()
	env, err := protocol.EncodeEnvelope(protocol.TypeGameFrame, protocol.GameFramePayload{
		FrameID: 5, Inputs: map[uint16][]byte{0: {1, 2}}, Confirmed: true,
	})
	require.NoError(t, err)

	s.dispatch(env)

	select {
	case f := <-s.frames:
		assert.Equal(t, uint32(5), f.FrameID)
		assert.True(t, f.Confirmed)
		assert.Equal(t, []byte{1, 2}, f.Inputs[0])
	default:
		t.Fatal("expected a delivered frame")
	}
}

func TestDispatchSyncFramesDeliversEachInOrder(t *testing.T) {
	s := testSession()
	env, err := protocol.EncodeEnvelope(protocol.TypeSyncFrames, protocol.SyncFramesPayload{
		Frames: []protocol.GameFramePayload{
			{FrameID: 1, Inputs: map[uint16][]byte{0: {1}}},
			{FrameID: 2, Inputs: map[uint16][]byte{0: {2}}},
		},
		CurrentFrame: 2,
	})
	require.NoError(t, err)

	s.dispatch(env)

	f1 := <-s.frames
	f2 := <-s.frames
	assert.Equal(t, uint32(1), f1.FrameID)
	assert.Equal(t, uint32(2), f2.FrameID)
}

func TestDispatchMalformedEnvelopeDoesNotPanic(t *testing.T) {
	s := testSession()
	assert.NotPanics(t, func() { s.dispatch([]byte{0xff, 0xff, 0xff}) })
}

func TestSendQueuesOntoBuffer(t *testing.T) {
	s := testSession()
	require.NoError(t, s.Send([]byte("hello")))

	select {
	case msg := <-s.sendChan:
		assert.Equal(t, []byte("hello"), msg)
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	s := testSession()
	// Fill the send buffer so the done branch is the only ready case —
	// otherwise select could nondeterministically pick either ready case.
	for i := 0; i < cap(s.sendChan); i++ {
		s.sendChan <- []byte("x")
	}
	close(s.done)

	err := s.Send([]byte("x"))
	assert.Error(t, err)
}

func TestOtherPlayersExcludesSelf(t *testing.T) {
	others := otherPlayers([]uint16{0, 1, 2}, 1)
	assert.ElementsMatch(t, []uint16{0, 2}, others)
}

func TestLastConfirmedFrameFindsMax(t *testing.T) {
	s := testSession()
	frames := []*frame.Frame{{FrameID: 3}, {FrameID: 7}, {FrameID: 5}}
	assert.Equal(t, uint32(7), s.LastConfirmedFrame(frames))
}
