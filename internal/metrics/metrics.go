// Package metrics exposes the server's Prometheus counters: frame
// commit/force-commit rates, rejected inputs, active rooms/players, and
// reconnect/rollback activity. A single process-wide Registry is
// exported via promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric the lockstep server exports, so a
// caller constructs one instance and wires it everywhere instead of
// reaching for prometheus's global default registerer from multiple
// packages.
type Registry struct {
	registry *prometheus.Registry

	FramesCommitted  prometheus.Counter
	FramesForced     prometheus.Counter
	InputsRejected   *prometheus.CounterVec
	ActiveRooms      prometheus.Gauge
	ActivePlayers    prometheus.Gauge
	Reconnects       prometheus.Counter
	PredictionRollbacks prometheus.Counter
	FrameCommitLatency  prometheus.Histogram
}

// New creates and registers a fresh Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		registry: reg,
		FramesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsync",
			Subsystem: "room",
			Name:      "frames_committed_total",
			Help:      "Frames committed because every player's input arrived before the deadline.",
		}),
		FramesForced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsync",
			Subsystem: "room",
			Name:      "frames_forced_total",
			Help:      "Frames force-committed after the deadline elapsed with missing input.",
		}),
		InputsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsync",
			Subsystem: "room",
			Name:      "inputs_rejected_total",
			Help:      "Inputs rejected by session/anti-cheat validation, by reason.",
		}, []string{"reason"}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fsync",
			Subsystem: "matchmaker",
			Name:      "active_rooms",
			Help:      "Currently live rooms.",
		}),
		ActivePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fsync",
			Subsystem: "matchmaker",
			Name:      "active_players",
			Help:      "Currently connected players across all rooms.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsync",
			Subsystem: "room",
			Name:      "reconnects_total",
			Help:      "Successful reconnect-and-resync requests served.",
		}),
		PredictionRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsync",
			Subsystem: "predictor",
			Name:      "rollbacks_total",
			Help:      "Client-side prediction rollbacks triggered by a mispredicted frame.",
		}),
		FrameCommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fsync",
			Subsystem: "room",
			Name:      "frame_commit_latency_seconds",
			Help:      "Wall-clock time between a frame's first input and its commit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.FramesCommitted,
		m.FramesForced,
		m.InputsRejected,
		m.ActiveRooms,
		m.ActivePlayers,
		m.Reconnects,
		m.PredictionRollbacks,
		m.FrameCommitLatency,
	)

	return m
}

// Gatherer exposes the underlying prometheus.Registry for wiring into
// an http.Handler via promhttp.HandlerFor.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.registry }
