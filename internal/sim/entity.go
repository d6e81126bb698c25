// Package sim implements the deterministic simulation kernel: entity
// state, gravity/friction/boundary physics, spatial-grid AABB
// collision, and state hashing for divergence detection. Every
// computation here uses fixedpoint.Fixed exclusively — a float
// anywhere in this package would make two peers' simulations diverge.
package sim

import "github.com/fsync/server/internal/fixedpoint"

// DefaultWidth and DefaultHeight are an entity's collision box in
// world units when not otherwise specified.
const (
	DefaultWidth  = 32
	DefaultHeight = 32
	DefaultMaxHP  = 100
)

// Entity is one simulated object (player character, projectile,
// pickup). All spatial fields are fixedpoint.Fixed so two peers
// running the identical op sequence land on the identical raw value.
type Entity struct {
	ID     uint32
	X, Y   fixedpoint.Fixed
	VX, VY fixedpoint.Fixed
	Width  fixedpoint.Fixed
	Height fixedpoint.Fixed
	HP     int
	MaxHP  int
	Flags  uint32
}

// NewEntity creates an entity at the origin with default dimensions
// and full health.
func NewEntity(id uint32) *Entity {
	return &Entity{
		ID:     id,
		Width:  fixedpoint.FromInt(DefaultWidth),
		Height: fixedpoint.FromInt(DefaultHeight),
		HP:     DefaultMaxHP,
		MaxHP:  DefaultMaxHP,
	}
}

// EntityFromFloat builds an entity at a float64 position, for loading
// initial map/spawn data only — never for an in-simulation update.
func EntityFromFloat(id uint32, x, y float64) *Entity {
	e := NewEntity(id)
	e.X = fixedpoint.FromFloat(x)
	e.Y = fixedpoint.FromFloat(y)
	return e
}

// SetVelocity sets velocity from float64 pixels/second, for input
// mapping at the simulation boundary.
func (e *Entity) SetVelocity(vx, vy float64) {
	e.VX = fixedpoint.FromFloat(vx)
	e.VY = fixedpoint.FromFloat(vy)
}

// UpdatePosition advances position by velocity * dt, where dtMillis is
// a whole-millisecond tick duration (typically 33ms at 30fps). The
// product is formed in int64 so it never saturates before the division,
// and integer division keeps the result identical across platforms.
func (e *Entity) UpdatePosition(dtMillis int) {
	if dtMillis <= 0 {
		return
	}
	delta := func(v fixedpoint.Fixed) fixedpoint.Fixed {
		d := int64(v) * int64(dtMillis) / 1000
		if d > 1<<31-1 {
			d = 1<<31 - 1
		} else if d < -(1 << 31) {
			d = -(1 << 31)
		}
		return fixedpoint.FromRaw(int32(d))
	}
	e.X = e.X.Add(delta(e.VX))
	e.Y = e.Y.Add(delta(e.VY))
}

// Bounds returns the entity's AABB as (minX, minY, maxX, maxY).
func (e *Entity) Bounds() (minX, minY, maxX, maxY fixedpoint.Fixed) {
	return e.X, e.Y, e.X.Add(e.Width), e.Y.Add(e.Height)
}

// Reset restores an entity to its pooled default state, for reuse by
// an EntityPool between rounds.
func (e *Entity) Reset() {
	e.X, e.Y = 0, 0
	e.VX, e.VY = 0, 0
	e.HP = e.MaxHP
	e.Flags = 0
}

// Snapshot is the plain-data projection of an Entity used for state
// hashing and wire transport — a struct literal, not a pointer, so two
// snapshots compare by value.
type Snapshot struct {
	ID    uint32 `json:"id"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	VX    int32  `json:"vx"`
	VY    int32  `json:"vy"`
	HP    int    `json:"hp"`
	Flags uint32 `json:"flags"`
}

// ToSnapshot projects the entity to its serializable form.
func (e *Entity) ToSnapshot() Snapshot {
	return Snapshot{
		ID:    e.ID,
		X:     e.X.Raw(),
		Y:     e.Y.Raw(),
		VX:    e.VX.Raw(),
		VY:    e.VY.Raw(),
		HP:    e.HP,
		Flags: e.Flags,
	}
}

// FromSnapshot reconstructs an Entity from its serializable form,
// restoring default dimensions since Snapshot never carries them.
func FromSnapshot(s Snapshot) *Entity {
	e := NewEntity(s.ID)
	e.X = fixedpoint.FromRaw(s.X)
	e.Y = fixedpoint.FromRaw(s.Y)
	e.VX = fixedpoint.FromRaw(s.VX)
	e.VY = fixedpoint.FromRaw(s.VY)
	e.HP = s.HP
	e.Flags = s.Flags
	return e
}

// EntityPool reuses Entity objects across spawns to avoid per-round
// allocation churn in a long-lived room.
type EntityPool struct {
	free   []*Entity
	active map[uint32]bool
}

// NewEntityPool pre-allocates initialSize pooled entities.
func NewEntityPool(initialSize int) *EntityPool {
	p := &EntityPool{active: make(map[uint32]bool)}
	for i := 0; i < initialSize; i++ {
		p.free = append(p.free, NewEntity(uint32(i)))
	}
	return p
}

// Acquire returns an entity bound to id, reusing a pooled instance
// when one is free. It panics if id is already active, since two live
// entities sharing an ID would silently corrupt collision detection.
func (p *EntityPool) Acquire(id uint32) *Entity {
	if p.active[id] {
		panic("sim: entity already active")
	}
	p.active[id] = true

	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		e.ID = id
		e.Reset()
		e.Width = fixedpoint.FromInt(DefaultWidth)
		e.Height = fixedpoint.FromInt(DefaultHeight)
		return e
	}
	return NewEntity(id)
}

// Release returns an entity to the pool.
func (p *EntityPool) Release(e *Entity) {
	if !p.active[e.ID] {
		return
	}
	delete(p.active, e.ID)
	p.free = append(p.free, e)
}
