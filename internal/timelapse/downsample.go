package timelapse

import (
	"container/heap"
	"math"

	"github.com/jengzang/floq-field/internal/models"
)

// Downsampling defaults
const (
	DefaultFlowStride    = 24.0 // pixels per dedupe cell
	DefaultMaxFlowPoints = 256
	DefaultMaxStorms     = 64
)

type strideCell struct {
	x, y int64
}

// DownsampleFlow keeps at most one flow vector per stride-sized cell and at
// most maxPoints vectors overall, packed as x,y,vx,vy quadruples. The first
// vector seen in a cell wins.
func DownsampleFlow(points []models.FlowVector, stride float64, maxPoints int) []float32 {
	if maxPoints <= 0 || len(points) == 0 {
		return []float32{}
	}
	if stride <= 0 || math.IsNaN(stride) {
		stride = 1
	}

	n := min(len(points), maxPoints)
	out := make([]float32, 0, 4*n)
	seen := make(map[strideCell]struct{}, n)

	for _, p := range points {
		if len(seen) >= maxPoints {
			break
		}
		if !finite(p.X, p.Y, p.VX, p.VY) {
			continue
		}
		cell := strideCell{int64(math.Floor(p.X / stride)), int64(math.Floor(p.Y / stride))}
		if _, dup := seen[cell]; dup {
			continue
		}
		seen[cell] = struct{}{}
		out = append(out, float32(p.X), float32(p.Y), float32(p.VX), float32(p.VY))
	}
	return out
}

// rankedStorm orders storm points by intensity, earlier input first on ties
type rankedStorm struct {
	models.StormPoint
	order int
}

// stormHeap is a min-heap: the weakest kept storm sits at the root
type stormHeap []rankedStorm

func (h stormHeap) Len() int { return len(h) }
func (h stormHeap) Less(i, j int) bool {
	if h[i].Intensity != h[j].Intensity {
		return h[i].Intensity < h[j].Intensity
	}
	return h[i].order > h[j].order
}
func (h stormHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *stormHeap) Push(x any)   { *h = append(*h, x.(rankedStorm)) }
func (h *stormHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DownsampleStorms keeps the topN most intense storm points, strongest
// first, packed as x,y,intensity triples
func DownsampleStorms(storms []models.StormPoint, topN int) []float32 {
	if topN <= 0 || len(storms) == 0 {
		return []float32{}
	}

	h := make(stormHeap, 0, min(len(storms), topN))
	for i, s := range storms {
		if !finite(s.X, s.Y, s.Intensity) {
			continue
		}
		item := rankedStorm{StormPoint: s, order: i}
		if h.Len() < topN {
			heap.Push(&h, item)
			continue
		}
		if stronger(item, h[0]) {
			h[0] = item
			heap.Fix(&h, 0)
		}
	}

	out := make([]float32, 3*h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		s := heap.Pop(&h).(rankedStorm)
		out[3*i] = float32(s.X)
		out[3*i+1] = float32(s.Y)
		out[3*i+2] = float32(s.Intensity)
	}
	return out
}

func stronger(a, b rankedStorm) bool {
	if a.Intensity != b.Intensity {
		return a.Intensity > b.Intensity
	}
	return a.order < b.order
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
