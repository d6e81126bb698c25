package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	sent [][]byte
}

func (f *fakeConn) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}
func (f *fakeConn) Close() error         { return nil }
func (f *fakeConn) RemoteAddr() string   { return "fake" }

func TestAcceptInputFrameRequiresStrictIncrease(t *testing.T) {
	s := NewSession("p1", 0, "room1", &fakeConn{})
	assert.True(t, s.AcceptInputFrame(5))
	assert.False(t, s.AcceptInputFrame(5))
	assert.False(t, s.AcceptInputFrame(4))
	assert.True(t, s.AcceptInputFrame(6))
	assert.Equal(t, int64(6), s.LastInputFrame())
}

func TestAllowMessageRateLimits(t *testing.T) {
	s := NewSession("p1", 0, "room1", &fakeConn{})
	allowed := 0
	for i := 0; i < MessageRateLimit*2; i++ {
		if s.AllowMessage() {
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, MessageRateLimit+1)
}

func TestPlayerIndexFromIDSuffix(t *testing.T) {
	assert.Equal(t, uint16(42), PlayerIndexFromID("player_42"))
	assert.Equal(t, uint16(0), PlayerIndexFromID("player_0"))
}

func TestPlayerIndexFromIDHashFallback(t *testing.T) {
	idx := PlayerIndexFromID("no-suffix-here")
	assert.Less(t, idx, uint16(1000))
}

func TestSessionSendEncodesEnvelope(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession("p1", 0, "room1", conn)
	err := s.Send("test", map[string]int{"a": 1})
	assert.NoError(t, err)
	assert.Len(t, conn.sent, 1)
}
