package sim

import "github.com/fsync/server/internal/fixedpoint"

// cellKey identifies one cell of the spatial grid.
type cellKey struct {
	X, Y int64
}

// SpatialGrid buckets entities by cell so collision detection only
// compares entities that are near each other instead of every pair.
type SpatialGrid struct {
	cellSize fixedpoint.Fixed
	cells    map[cellKey][]uint32
}

// NewSpatialGrid creates a grid with the given cell size.
func NewSpatialGrid(cellSize fixedpoint.Fixed) *SpatialGrid {
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]uint32),
	}
}

func (g *SpatialGrid) keyFor(e *Entity) cellKey {
	cx := e.X.Add(e.Width.Div(fixedpoint.FromInt(2)))
	cy := e.Y.Add(e.Height.Div(fixedpoint.FromInt(2)))
	return cellKey{
		X: int64(cx) / int64(g.cellSize),
		Y: int64(cy) / int64(g.cellSize),
	}
}

// Rebuild clears and repopulates the grid from the given entities, in
// the order given — that order becomes each cell bucket's iteration
// order, which is why callers must pass entities in a stable order.
func (g *SpatialGrid) Rebuild(entities []*Entity) {
	g.cells = make(map[cellKey][]uint32)
	for _, e := range entities {
		key := g.keyFor(e)
		g.cells[key] = append(g.cells[key], e.ID)
	}
}

// neighborOffsets is the exact four-direction half-mask used to visit
// each adjacent cell pair exactly once: with same-cell pairs handled
// separately, walking only these four neighbors (rather than all
// eight) still covers every cross-cell pair because each unordered
// cell pair is adjacent along exactly one of these four directions
// from one of its two cells.
var neighborOffsets = [4][2]int64{
	{-1, 0}, {0, -1}, {-1, -1}, {1, -1},
}

// PotentialPairs returns every (minID, maxID) entity pair that shares
// a cell or occupies adjacent cells, each pair exactly once regardless
// of map iteration order.
func (g *SpatialGrid) PotentialPairs() [][2]uint32 {
	checked := make(map[[2]uint32]bool)
	var pairs [][2]uint32

	addPair := func(id1, id2 uint32) {
		pair := orderedPair(id1, id2)
		if checked[pair] {
			return
		}
		checked[pair] = true
		pairs = append(pairs, pair)
	}

	for key, ids := range g.cells {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				addPair(ids[i], ids[j])
			}
		}

		for _, offset := range neighborOffsets {
			neighborKey := cellKey{X: key.X + offset[0], Y: key.Y + offset[1]}
			neighborIDs, ok := g.cells[neighborKey]
			if !ok {
				continue
			}
			for _, id1 := range ids {
				for _, id2 := range neighborIDs {
					addPair(id1, id2)
				}
			}
		}
	}

	return pairs
}

func orderedPair(a, b uint32) [2]uint32 {
	if a < b {
		return [2]uint32{a, b}
	}
	return [2]uint32{b, a}
}
