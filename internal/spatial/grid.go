package spatial

import (
	"math"

	"github.com/golang/geo/r2"
)

type cellKey struct {
	cx, cy int
}

// BinGrid buckets item indices into uniform square cells so that
// near pairs can be enumerated without a full O(n²) scan.
type BinGrid struct {
	cellSize float64
	cells    map[cellKey][]int
	order    []cellKey
}

// forward half of the 8-neighbourhood; together with the home cell
// every adjacent cell pair is visited exactly once
var forwardOffsets = [...]cellKey{{1, -1}, {1, 0}, {1, 1}, {0, 1}}

// NewBinGrid creates an empty grid with the given cell size.
// Non-positive sizes fall back to 1 pixel.
func NewBinGrid(cellSize float64) *BinGrid {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		cellSize = 1
	}
	return &BinGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

func (g *BinGrid) key(p r2.Point) cellKey {
	return cellKey{
		cx: int(math.Floor(p.X / g.cellSize)),
		cy: int(math.Floor(p.Y / g.cellSize)),
	}
}

// Insert adds item idx at position p
func (g *BinGrid) Insert(idx int, p r2.Point) {
	k := g.key(p)
	if _, ok := g.cells[k]; !ok {
		g.order = append(g.order, k)
	}
	g.cells[k] = append(g.cells[k], idx)
}

// Len returns the number of occupied cells
func (g *BinGrid) Len() int {
	return len(g.cells)
}

// CandidatePairs calls fn once for every unordered pair of items that share
// a cell or sit in adjacent cells. Iteration follows insertion order.
func (g *BinGrid) CandidatePairs(fn func(i, j int)) {
	for _, k := range g.order {
		home := g.cells[k]
		for a := 0; a < len(home); a++ {
			for b := a + 1; b < len(home); b++ {
				fn(home[a], home[b])
			}
		}
		for _, off := range forwardOffsets {
			other, ok := g.cells[cellKey{k.cx + off.cx, k.cy + off.cy}]
			if !ok {
				continue
			}
			for _, i := range home {
				for _, j := range other {
					fn(i, j)
				}
			}
		}
	}
}
