// Package main implements the frame-sync lockstep game server.
//
// Architecture Overview:
//   - WebSocket transport, msgpack envelopes over a single binary
//     message type (internal/protocol)
//   - Each room runs its own 30Hz lockstep tick loop; the server never
//     runs authoritative physics — it only sequences and broadcasts
//     player input (internal/room, internal/frame)
//   - Anti-cheat validates every input server-side before it reaches
//     the frame buffer (internal/protocol.InputValidator)
//
// Connection Flow:
//  1. Client connects via WebSocket to /ws
//  2. Client's first message must be an auth envelope within 5s, or
//     the connection is closed with code 4002
//  3. Server creates/joins the named room and replies with joinSuccess
//  4. Client sends input envelopes; server broadcasts gameFrame
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fsync/server/config"
	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/metrics"
	"github.com/fsync/server/internal/protocol"
	"github.com/fsync/server/internal/room"
)

// authTimeout is the spec's 5s window for the first message to be a
// valid auth envelope, per §4.6.
const authTimeout = 5 * time.Second

const (
	maxPlayerIDLen = 64
	maxRoomIDLen   = 64
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	// FractionBits must be set before any fixedpoint value is
	// constructed — sessionConfig's raw conversions below depend on it.
	fixedpoint.Configure(cfg.FixedPoint.FractionBits)
	sessionConfig := sessionConfigFromConfig(cfg)

	reg := metrics.New()
	mm := room.NewMatchmaker(room.MaxRoomsPerServer, cfg.Game.MaxPlayersPerRoom, log)
	mm.SetMetrics(reg)
	mm.Configure(cfg.Network.TickRate, sessionConfig)

	srv := &server{
		cfg:        cfg,
		log:        log,
		matchmaker: mm,
		metrics:    reg,
		validator:  func() *protocol.InputValidator { return protocol.NewInputValidator(cfg.Network.MaxAPM) },
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return cfg.EnableCORS },
		},
	}

	go srv.cleanupLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.WithFields(logrus.Fields{
		"addr":       addr,
		"tickRate":   cfg.Network.TickRate,
		"maxPlayers": cfg.Game.MaxPlayersPerRoom,
		"maxRooms":   room.MaxRoomsPerServer,
	}).Info("frame-sync server starting")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// sessionConfigFromConfig converts the process's loaded configuration
// into the wire-safe SessionConfig every joining peer is handed in
// joinSuccess, so peers can verify (or adopt) the exact physics/entity
// constants this server is running rather than guessing them (spec
// §6/§9).
func sessionConfigFromConfig(cfg *config.Config) protocol.SessionConfig {
	p := cfg.Physics
	g := cfg.Game
	return protocol.SessionConfig{
		FrameDeadlineMillis: cfg.Network.FrameDeadlineMillis,
		BufferSize:          cfg.Network.BufferSize,
		MaxAPM:              cfg.Network.MaxAPM,

		Gravity:     fixedpoint.FromFloat(p.Gravity).Raw(),
		Friction:    fixedpoint.FromFloat(p.Friction).Raw(),
		MaxVelocity: fixedpoint.FromFloat(p.MaxVelocity).Raw(),
		WorldWidth:  fixedpoint.FromFloat(p.WorldWidth).Raw(),
		WorldHeight: fixedpoint.FromFloat(p.WorldHeight).Raw(),
		CellSize:    fixedpoint.FromFloat(p.CellSize).Raw(),

		PlayerSpeed:       fixedpoint.FromFloat(g.PlayerSpeed).Raw(),
		EntityWidth:       fixedpoint.FromFloat(p.EntityWidth).Raw(),
		EntityHeight:      fixedpoint.FromFloat(p.EntityHeight).Raw(),
		AttackRange:       fixedpoint.FromFloat(g.AttackRange).Raw(),
		AttackDamage:      g.AttackDamage,
		DefaultHP:         g.DefaultHP,
		MaxPlayersPerRoom: g.MaxPlayersPerRoom,

		FractionBits: cfg.FixedPoint.FractionBits,
	}
}

type server struct {
	cfg        *config.Config
	log        *logrus.Logger
	matchmaker *room.Matchmaker
	metrics    *metrics.Registry
	validator  func() *protocol.InputValidator
	upgrader   websocket.Upgrader
}

func (s *server) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if n := s.matchmaker.CleanupEmptyRooms(); n > 0 {
			s.log.WithField("removed", n).Info("cleaned up empty rooms")
		}
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.matchmaker.GetStats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"rooms":%d,"players":%d}`, stats.TotalRooms, stats.TotalPlayers)
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := newConnHandler(s, ws)
	go c.run()
}
