package room

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fsync/server/internal/metrics"
	"github.com/fsync/server/internal/protocol"
)

// MaxRoomsPerServer bounds the number of concurrently live rooms.
const MaxRoomsPerServer = 500

// Matchmaker owns the shared rooms map: creation, lookup, and cleanup
// of empty rooms. Grounded on the teacher's matchmaker.Matchmaker,
// generalized to lockstep rooms that never auto-fill from a free pool —
// the spec always routes joins through an explicit room ID (auth's
// roomId field), so Matchmaker only exposes GetOrCreate, not FindRoom.
type Matchmaker struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	maxRooms   int
	maxPlayers int
	log        *logrus.Entry
	metrics    *metrics.Registry

	tickRate      int
	sessionConfig protocol.SessionConfig
}

// Configure stores the tick rate and SessionConfig every room the
// matchmaker creates afterwards will run with, per spec §9's
// "configuration ... passed by reference to every component". Rooms it
// already owns receive the values too, but a room whose tick loop is
// already running keeps the tick rate it started with.
func (m *Matchmaker) Configure(tickRate int, cfg protocol.SessionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickRate = tickRate
	m.sessionConfig = cfg
	for _, r := range m.rooms {
		r.Configure(tickRate, cfg)
	}
}

// SetMetrics attaches a registry that every room the matchmaker creates
// will report to, and immediately updates the active-rooms/players
// gauges from current state.
func (m *Matchmaker) SetMetrics(reg *metrics.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = reg
	for _, r := range m.rooms {
		r.SetMetrics(reg)
	}
	m.reportGaugesUnlocked()
}

func (m *Matchmaker) reportGaugesUnlocked() {
	if m.metrics == nil {
		return
	}
	players := 0
	for _, r := range m.rooms {
		players += r.PlayerCount()
	}
	m.metrics.ActiveRooms.Set(float64(len(m.rooms)))
	m.metrics.ActivePlayers.Set(float64(players))
}

// NewMatchmaker creates a matchmaker bounded by maxRooms/maxPlayers.
func NewMatchmaker(maxRooms, maxPlayers int, log *logrus.Logger) *Matchmaker {
	if maxRooms <= 0 {
		maxRooms = MaxRoomsPerServer
	}
	if maxPlayers <= 0 {
		maxPlayers = MaxPlayersPerRoom
	}
	return &Matchmaker{
		rooms:      make(map[string]*Room),
		maxRooms:   maxRooms,
		maxPlayers: maxPlayers,
		log:        log.WithField("component", "matchmaker"),
	}
}

// GetRoom looks up a room by ID without creating one.
func (m *Matchmaker) GetRoom(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// GetOrCreateRoom returns the named room, creating and starting it if
// absent. Returns nil if the server is at its room-count ceiling.
func (m *Matchmaker) GetOrCreateRoom(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok {
		return r
	}
	if len(m.rooms) >= m.maxRooms {
		return nil
	}

	r := NewRoom(roomID, m.maxPlayers, m.log)
	if m.metrics != nil {
		r.SetMetrics(m.metrics)
	}
	if m.tickRate > 0 {
		r.Configure(m.tickRate, m.sessionConfig)
	}
	m.rooms[roomID] = r
	r.Start()
	m.reportGaugesUnlocked()
	m.log.WithField("room", roomID).Info("room created")
	return r
}

// RemoveRoom stops and forgets a room.
func (m *Matchmaker) RemoveRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok {
		r.Stop()
		delete(m.rooms, roomID)
		m.reportGaugesUnlocked()
	}
}

// CleanupEmptyRooms stops and removes every room with no players left,
// returning how many were removed.
func (m *Matchmaker) CleanupEmptyRooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.rooms {
		if r.IsEmpty() {
			r.Stop()
			delete(m.rooms, id)
			removed++
		}
	}
	if removed > 0 {
		m.reportGaugesUnlocked()
	}
	return removed
}

// Stats summarizes matchmaker state for /stats and metrics export.
type Stats struct {
	TotalRooms   int
	TotalPlayers int
	Rooms        []RoomStats
}

// RoomStats summarizes one room.
type RoomStats struct {
	ID          string
	PlayerCount int
	MaxPlayers  int
	Started     bool
}

// GetStats snapshots every room's occupancy.
func (m *Matchmaker) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalRooms: len(m.rooms), Rooms: make([]RoomStats, 0, len(m.rooms))}
	for id, r := range m.rooms {
		count := r.PlayerCount()
		stats.TotalPlayers += count
		r.mu.RLock()
		started := r.started
		r.mu.RUnlock()
		stats.Rooms = append(stats.Rooms, RoomStats{
			ID:          id,
			PlayerCount: count,
			MaxPlayers:  r.maxPlayers,
			Started:     started,
		})
	}
	return stats
}
