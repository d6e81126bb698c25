package fixedpoint

// RNG is a deterministic Xorshift32 generator. Every peer in a session
// that seeds an RNG with the same value and calls it the same number
// of times in the same order produces the identical sequence — this
// is what makes random combat/loot rolls safe to run independently on
// server and client instead of being sent over the wire.
//
// Seed 0 is remapped to 1 (Xorshift requires a non-zero state).
type RNG struct {
	state uint32
}

// NewRNG creates a generator from the given seed.
func NewRNG(seed uint32) *RNG {
	r := &RNG{state: seed}
	if r.state == 0 {
		r.state = 1
	}
	return r
}

// NextUint32 advances the generator and returns the next value.
func (r *RNG) NextUint32() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// NextInt32 reinterprets the next uint32 as a signed value.
func (r *RNG) NextInt32() int32 {
	return int32(r.NextUint32())
}

// Range returns a value in [lo, hi] inclusive.
func (r *RNG) Range(lo, hi int32) int32 {
	if lo == hi {
		return lo
	}
	span := uint32(hi - lo + 1)
	return lo + int32(r.NextUint32()%span)
}

// Uniform returns a value in [0, 1), for final-stage UI use only —
// never feed it back into a deterministic calculation that must widen
// precision beyond a float64's mantissa.
func (r *RNG) Uniform() float64 {
	return float64(r.NextUint32()) / 4294967296.0
}

// Chance returns true with the given probability, expressed as a
// Q-point ratio (e.g. fixedpoint.Fixed) converted by the caller to a
// float64 in [0,1] so the threshold stays deterministic across peers
// that agree on the same FractionBits.
func (r *RNG) Chance(probability float64) bool {
	return r.Uniform() < probability
}

// Pick returns a random element of items, or the zero value and false
// if items is empty.
func Pick[T any](r *RNG, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	idx := r.Range(0, int32(len(items)-1))
	return items[idx], true
}

// Shuffle performs a deterministic in-place Fisher-Yates shuffle,
// walking from the high index down as the spec requires so that the
// sequence of Range() calls — and therefore the result — is identical
// across peers.
func Shuffle[T any](r *RNG, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Range(0, int32(i))
		items[i], items[j] = items[j], items[i]
	}
}

// State returns the current internal state, for rollback replay: save
// it before a predicted frame, restore it on mispredict.
func (r *RNG) State() uint32 {
	return r.state
}

// SetState restores a previously saved state.
func (r *RNG) SetState(state uint32) {
	r.state = state
	if r.state == 0 {
		r.state = 1
	}
}
