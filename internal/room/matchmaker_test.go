package room

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsync/server/internal/metrics"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestGetOrCreateRoomCreatesOnce(t *testing.T) {
	m := NewMatchmaker(10, 4, testLogger())
	r1 := m.GetOrCreateRoom("abc")
	require.NotNil(t, r1)
	r2 := m.GetOrCreateRoom("abc")
	assert.Same(t, r1, r2)
	m.RemoveRoom("abc")
}

func TestGetOrCreateRoomRespectsRoomCeiling(t *testing.T) {
	m := NewMatchmaker(1, 4, testLogger())
	r1 := m.GetOrCreateRoom("a")
	require.NotNil(t, r1)
	r2 := m.GetOrCreateRoom("b")
	assert.Nil(t, r2)
	m.RemoveRoom("a")
}

func TestCleanupEmptyRoomsRemovesEmpty(t *testing.T) {
	m := NewMatchmaker(10, 4, testLogger())
	r := m.GetOrCreateRoom("a")
	r.Join("player_1", &fakeConn{})

	removed := m.CleanupEmptyRooms()
	assert.Equal(t, 0, removed)

	r.Leave(1)
	removed = m.CleanupEmptyRooms()
	assert.Equal(t, 1, removed)
	assert.Nil(t, m.GetRoom("a"))
}

func TestGetStatsReportsOccupancy(t *testing.T) {
	m := NewMatchmaker(10, 4, testLogger())
	r := m.GetOrCreateRoom("a")
	r.Join("player_1", &fakeConn{})

	stats := m.GetStats()
	assert.Equal(t, 1, stats.TotalRooms)
	assert.Equal(t, 1, stats.TotalPlayers)
	require.Len(t, stats.Rooms, 1)
	assert.Equal(t, "a", stats.Rooms[0].ID)
	m.RemoveRoom("a")
}

func TestSetMetricsReportsGauges(t *testing.T) {
	m := NewMatchmaker(10, 4, testLogger())
	r := m.GetOrCreateRoom("a")
	r.Join("player_1", &fakeConn{})

	reg := metrics.New()
	m.SetMetrics(reg)

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ActiveRooms))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ActivePlayers))

	m.RemoveRoom("a")
	assert.Equal(t, float64(0), testutil.ToFloat64(reg.ActiveRooms))
}
