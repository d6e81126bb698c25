package sim

import (
	"testing"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/stretchr/testify/assert"
)

func TestSpatialGridSameCellPair(t *testing.T) {
	g := NewSpatialGrid(fixedpoint.FromInt(64))
	a := NewEntity(1)
	b := NewEntity(2)
	b.X = fixedpoint.FromInt(5)
	g.Rebuild([]*Entity{a, b})

	pairs := g.PotentialPairs()
	assert.Equal(t, [][2]uint32{{1, 2}}, pairs)
}

func TestSpatialGridAdjacentCellPair(t *testing.T) {
	g := NewSpatialGrid(fixedpoint.FromInt(64))
	a := NewEntity(1)
	b := NewEntity(2)
	b.X = fixedpoint.FromInt(64) // exactly one cell to the right
	g.Rebuild([]*Entity{a, b})

	pairs := g.PotentialPairs()
	assert.Contains(t, pairs, [2]uint32{1, 2})
}

func TestSpatialGridNoPairAcrossFarCells(t *testing.T) {
	g := NewSpatialGrid(fixedpoint.FromInt(64))
	a := NewEntity(1)
	b := NewEntity(2)
	b.X = fixedpoint.FromInt(1000)
	g.Rebuild([]*Entity{a, b})

	assert.Empty(t, g.PotentialPairs())
}

func TestSpatialGridPairCountedOnce(t *testing.T) {
	g := NewSpatialGrid(fixedpoint.FromInt(64))
	a := NewEntity(1)
	b := NewEntity(2)
	c := NewEntity(3)
	g.Rebuild([]*Entity{a, b, c})

	pairs := g.PotentialPairs()
	seen := make(map[[2]uint32]int)
	for _, p := range pairs {
		seen[p]++
	}
	for pair, count := range seen {
		assert.Equalf(t, 1, count, "pair %v counted %d times", pair, count)
	}
}
