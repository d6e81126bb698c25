package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersEveryMetric(t *testing.T) {
	m := New()

	m.FramesCommitted.Inc()
	m.FramesForced.Inc()
	m.InputsRejected.WithLabelValues("replay_guard").Inc()
	m.ActiveRooms.Set(3)
	m.ActivePlayers.Set(7)
	m.Reconnects.Inc()
	m.PredictionRollbacks.Inc()
	m.FrameCommitLatency.Observe(0.02)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesCommitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesForced))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveRooms))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.ActivePlayers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconnects))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PredictionRollbacks))

	families, err := m.Gatherer().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
