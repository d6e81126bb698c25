package sim

import (
	"sort"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/protocol"
)

// Engine defaults, matching the reference physics engine: world units
// are pixels expressed in fixedpoint.Fixed.
var (
	DefaultGravity      = fixedpoint.FromInt(980)
	DefaultFriction     = fixedpoint.FromFloat(0.9)
	DefaultMaxVelocity  = fixedpoint.FromInt(1000)
	DefaultWorldWidth   = fixedpoint.FromInt(1920)
	DefaultWorldHeight  = fixedpoint.FromInt(1080)
	DefaultCellSize     = fixedpoint.FromInt(64)
	DefaultMoveSpeed    = fixedpoint.FromInt(300)
	DefaultAttackRange  = fixedpoint.FromInt(64)
	DefaultAttackDamage = 10
)

// EngineConfig parameterizes every physics/entity constant two peers
// must agree on to stay in lockstep, sourced from config.PhysicsConfig
// and config.GameConfig at process start (spec §9: configuration is
// loaded once and passed by reference to every component).
type EngineConfig struct {
	Gravity     fixedpoint.Fixed
	Friction    fixedpoint.Fixed
	MaxVelocity fixedpoint.Fixed
	WorldWidth  fixedpoint.Fixed
	WorldHeight fixedpoint.Fixed
	CellSize    fixedpoint.Fixed

	MoveSpeed    fixedpoint.Fixed
	EntityWidth  fixedpoint.Fixed
	EntityHeight fixedpoint.Fixed
	AttackRange  fixedpoint.Fixed
	AttackDamage int
	DefaultHP    int
}

// DefaultEngineConfig returns the reference engine's built-in
// constants, used when nothing more specific is supplied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Gravity:      DefaultGravity,
		Friction:     DefaultFriction,
		MaxVelocity:  DefaultMaxVelocity,
		WorldWidth:   DefaultWorldWidth,
		WorldHeight:  DefaultWorldHeight,
		CellSize:     DefaultCellSize,
		MoveSpeed:    DefaultMoveSpeed,
		EntityWidth:  fixedpoint.FromInt(DefaultWidth),
		EntityHeight: fixedpoint.FromInt(DefaultHeight),
		AttackRange:  DefaultAttackRange,
		AttackDamage: DefaultAttackDamage,
		DefaultHP:    DefaultMaxHP,
	}
}

// Engine runs one room's deterministic physics simulation: gravity,
// velocity clamping, integration, friction, boundary clamping, and
// entity-vs-entity collision, in that fixed order every tick.
type Engine struct {
	Gravity     fixedpoint.Fixed
	Friction    fixedpoint.Fixed
	MaxVelocity fixedpoint.Fixed
	WorldWidth  fixedpoint.Fixed
	WorldHeight fixedpoint.Fixed

	EntityWidth  fixedpoint.Fixed
	EntityHeight fixedpoint.Fixed
	AttackRange  fixedpoint.Fixed
	AttackDamage int
	DefaultHP    int

	entities  map[uint32]*Entity
	order     []uint32 // insertion order, for a deterministic iteration order
	grid      *SpatialGrid
	lastPairs [][2]uint32
}

// NewEngine creates an engine with the reference defaults.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates an engine using the given physics/entity
// configuration, e.g. one sourced from a process's loaded config.Config
// rather than the hardcoded reference defaults.
func NewEngineWithConfig(cfg EngineConfig) *Engine {
	return &Engine{
		Gravity:      cfg.Gravity,
		Friction:     cfg.Friction,
		MaxVelocity:  cfg.MaxVelocity,
		WorldWidth:   cfg.WorldWidth,
		WorldHeight:  cfg.WorldHeight,
		EntityWidth:  cfg.EntityWidth,
		EntityHeight: cfg.EntityHeight,
		AttackRange:  cfg.AttackRange,
		AttackDamage: cfg.AttackDamage,
		DefaultHP:    cfg.DefaultHP,
		entities:     make(map[uint32]*Entity),
		grid:         NewSpatialGrid(cfg.CellSize),
	}
}

// NewEntityAt creates an entity sized and healthed from this engine's
// configured defaults — the config-driven counterpart to the
// package-level NewEntity, which always uses the hardcoded constants.
func (e *Engine) NewEntityAt(id uint32) *Entity {
	return &Entity{
		ID:     id,
		Width:  e.EntityWidth,
		Height: e.EntityHeight,
		HP:     e.DefaultHP,
		MaxHP:  e.DefaultHP,
	}
}

// ApplyAttack resolves one Attack-flagged input: every other living
// entity within AttackRange (Chebyshev distance, matching the
// boundary-clamp axis independence elsewhere in this package) of
// attackerID takes AttackDamage, clamped at 0. Entities are visited in
// insertion order so two peers resolving the same simultaneous attacks
// land on identical HP values. Returns the IDs that were hit.
func (e *Engine) ApplyAttack(attackerID uint32) []uint32 {
	attacker := e.entities[attackerID]
	if attacker == nil {
		return nil
	}

	var hit []uint32
	for _, id := range e.order {
		if id == attackerID {
			continue
		}
		target := e.entities[id]
		if target == nil || target.HP <= 0 {
			continue
		}
		dx := target.X.Sub(attacker.X).Abs()
		dy := target.Y.Sub(attacker.Y).Abs()
		if dx <= e.AttackRange && dy <= e.AttackRange {
			target.HP -= e.AttackDamage
			if target.HP < 0 {
				target.HP = 0
			}
			hit = append(hit, id)
		}
	}
	return hit
}

// AddEntity registers an entity with the engine.
func (e *Engine) AddEntity(entity *Entity) {
	if _, exists := e.entities[entity.ID]; !exists {
		e.order = append(e.order, entity.ID)
	}
	e.entities[entity.ID] = entity
}

// RemoveEntity unregisters an entity.
func (e *Engine) RemoveEntity(id uint32) {
	if _, exists := e.entities[id]; !exists {
		return
	}
	delete(e.entities, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Entity returns the entity with the given ID, or nil.
func (e *Engine) Entity(id uint32) *Entity {
	return e.entities[id]
}

// Entities returns all entities in stable insertion order — iterating
// a Go map directly would make collision resolution order, and
// therefore overlap-split rounding, nondeterministic across peers.
func (e *Engine) Entities() []*Entity {
	out := make([]*Entity, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.entities[id])
	}
	return out
}

// ApplyInput sets an entity's velocity from a player's directional
// input flags, mirroring the reference engine's apply_input.
func (e *Engine) ApplyInput(entityID uint32, flags uint8, speed fixedpoint.Fixed) {
	entity := e.entities[entityID]
	if entity == nil {
		return
	}

	var vx, vy fixedpoint.Fixed
	if flags&protocol.FlagMoveLeft != 0 {
		vx = vx.Sub(speed)
	}
	if flags&protocol.FlagMoveRight != 0 {
		vx = vx.Add(speed)
	}
	if flags&protocol.FlagMoveUp != 0 {
		vy = vy.Sub(speed)
	}
	if flags&protocol.FlagMoveDown != 0 {
		vy = vy.Add(speed)
	}
	entity.VX = vx
	entity.VY = vy
}

// Step advances the simulation by one tick of dtMillis milliseconds:
// gravity, velocity clamp, integrate, friction, boundary clamp,
// collision — always in this order so the result is reproducible.
func (e *Engine) Step(dtMillis int) {
	if dtMillis <= 0 {
		return
	}
	dt := fixedpoint.FromInt(dtMillis)
	thousand := fixedpoint.FromInt(1000)

	for _, id := range e.order {
		entity := e.entities[id]

		entity.VY = entity.VY.Add(e.Gravity.Mul(dt).Div(thousand))
		entity.VX = entity.VX.Clamp(e.MaxVelocity.Neg(), e.MaxVelocity)
		entity.VY = entity.VY.Clamp(e.MaxVelocity.Neg(), e.MaxVelocity)

		entity.UpdatePosition(dtMillis)

		entity.VX = entity.VX.Mul(e.Friction)
	}

	e.handleBoundaryCollision()
	e.handleEntityCollision()
}

func (e *Engine) handleBoundaryCollision() {
	for _, id := range e.order {
		entity := e.entities[id]
		if entity.X < 0 {
			entity.X = 0
			entity.VX = 0
		}
		if entity.X.Add(entity.Width) > e.WorldWidth {
			entity.X = e.WorldWidth.Sub(entity.Width)
			entity.VX = 0
		}
		if entity.Y < 0 {
			entity.Y = 0
			entity.VY = 0
		}
		if entity.Y.Add(entity.Height) > e.WorldHeight {
			entity.Y = e.WorldHeight.Sub(entity.Height)
			entity.VY = 0
		}
	}
}

func (e *Engine) handleEntityCollision() {
	e.grid.Rebuild(e.Entities())
	pairs := e.grid.PotentialPairs()

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	e.lastPairs = e.lastPairs[:0]
	for _, pair := range pairs {
		a, b := e.entities[pair[0]], e.entities[pair[1]]
		if a == nil || b == nil {
			continue
		}
		if checkAABBCollision(a, b) {
			e.lastPairs = append(e.lastPairs, pair)
			resolveCollision(a, b)
		}
	}
}

// LastCollisionPairs returns the entity-ID pairs that collided on the
// most recent Step, sorted by (min,max) ID for deterministic ordering.
func (e *Engine) LastCollisionPairs() [][2]uint32 {
	return e.lastPairs
}

func checkAABBCollision(a, b *Entity) bool {
	aMinX, aMinY, aMaxX, aMaxY := a.Bounds()
	bMinX, bMinY, bMaxX, bMaxY := b.Bounds()
	return aMinX < bMaxX && aMaxX > bMinX && aMinY < bMaxY && aMaxY > bMinY
}

// resolveCollision separates two overlapping entities along their
// shallower overlap axis and zeroes velocity on that axis, the same
// minimum-translation-vector approach as the reference engine.
func resolveCollision(a, b *Entity) {
	aMinX, aMinY, aMaxX, aMaxY := a.Bounds()
	bMinX, bMinY, bMaxX, bMaxY := b.Bounds()

	overlapX := min32(aMaxX.Sub(bMinX), bMaxX.Sub(aMinX))
	overlapY := min32(aMaxY.Sub(bMinY), bMaxY.Sub(aMinY))

	half := fixedpoint.FromInt(2)
	if overlapX < overlapY {
		shift := overlapX.Div(half)
		if a.X < b.X {
			a.X = a.X.Sub(shift)
			b.X = b.X.Add(shift)
		} else {
			a.X = a.X.Add(shift)
			b.X = b.X.Sub(shift)
		}
		a.VX, b.VX = 0, 0
	} else {
		shift := overlapY.Div(half)
		if a.Y < b.Y {
			a.Y = a.Y.Sub(shift)
			b.Y = b.Y.Add(shift)
		} else {
			a.Y = a.Y.Add(shift)
			b.Y = b.Y.Sub(shift)
		}
		a.VY, b.VY = 0, 0
	}
}

func min32(a, b fixedpoint.Fixed) fixedpoint.Fixed {
	if a < b {
		return a
	}
	return b
}

// DistanceSquared returns the squared distance between two entities'
// origins, in fixedpoint.Fixed units.
func DistanceSquared(a, b *Entity) fixedpoint.Fixed {
	dx := a.X.Sub(b.X)
	dy := a.Y.Sub(b.Y)
	return dx.Mul(dx).Add(dy.Mul(dy))
}

// Distance returns the integer square root of DistanceSquared, using a
// deterministic Newton's-method isqrt rather than math.Sqrt so the
// result matches bit-for-bit across peers. Unlike DistanceSquared, the
// result is not a Fixed value: it is the square root of the raw
// squared distance (the distance times 256 at the default 16 fraction
// bits), so callers compare it to other Distance() results, not to raw
// world distances.
func Distance(a, b *Entity) int32 {
	return isqrt(DistanceSquared(a, b).Raw())
}

func isqrt(n int32) int32 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
