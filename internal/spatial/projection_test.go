package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func TestWorldPixel(t *testing.T) {
	p := WorldPixel(0, 0, 0)
	assert.InDelta(t, 128.0, p.X, 1e-9)
	assert.InDelta(t, 128.0, p.Y, 1e-9)

	p = WorldPixel(0, 180, 1)
	assert.InDelta(t, 512.0, p.X, 1e-6)

	north := WorldPixel(89.9, 0, 0)
	assert.InDelta(t, 0.0, north.Y, 1e-3, "clamped to the Mercator cut-off")
}

func TestViewportProject(t *testing.T) {
	v := Viewport{CenterLat: 52.52, CenterLon: 13.405, Zoom: 14, Width: 800, Height: 600}
	assert.True(t, v.Valid())

	c := v.Project(v.CenterLat, v.CenterLon)
	assert.InDelta(t, 400.0, c.X, 1e-6)
	assert.InDelta(t, 300.0, c.Y, 1e-6)

	east := v.Project(v.CenterLat, v.CenterLon+0.001)
	assert.Greater(t, east.X, c.X)
	north := v.Project(v.CenterLat+0.001, v.CenterLon)
	assert.Less(t, north.Y, c.Y, "screen y grows southwards")
}

func TestViewportValid(t *testing.T) {
	assert.False(t, Viewport{CenterLat: 95, Width: 10, Height: 10}.Valid())
	assert.False(t, Viewport{Width: 0, Height: 10}.Valid())
	assert.True(t, Viewport{Width: 1, Height: 1}.Valid())
}

func TestViewportDiscontinuous(t *testing.T) {
	base := Viewport{CenterLat: 40.7128, CenterLon: -74.006, Zoom: 11, Width: 800, Height: 600}

	tests := []struct {
		name string
		next Viewport
		want bool
	}{
		{"same", base, false},
		{"one zoom level", Viewport{CenterLat: base.CenterLat, CenterLon: base.CenterLon, Zoom: 12, Width: 800, Height: 600}, false},
		{"two zoom levels", Viewport{CenterLat: base.CenterLat, CenterLon: base.CenterLon, Zoom: 13, Width: 800, Height: 600}, true},
		{"small pan", Viewport{CenterLat: base.CenterLat, CenterLon: base.CenterLon + 0.1, Zoom: 11, Width: 800, Height: 600}, false},
		{"jump", Viewport{CenterLat: base.CenterLat, CenterLon: base.CenterLon + 1, Zoom: 11, Width: 800, Height: 600}, true},
		{"invalid next", Viewport{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Discontinuous(tt.next))
		})
	}
}

func TestWeightedMidpoint(t *testing.T) {
	m := WeightedMidpoint(r2.Point{X: 0, Y: 0}, 1, r2.Point{X: 10, Y: 20}, 3)
	assert.InDelta(t, 7.5, m.X, 1e-9)
	assert.InDelta(t, 15.0, m.Y, 1e-9)

	a := r2.Point{X: 4, Y: 4}
	assert.Equal(t, a, WeightedMidpoint(a, 0, r2.Point{X: 9, Y: 9}, 0))
}

func TestDistanceHelpers(t *testing.T) {
	a, b := r2.Point{X: 0, Y: 0}, r2.Point{X: 3, Y: 4}
	assert.InDelta(t, 5.0, Distance(a, b), 1e-12)
	assert.InDelta(t, 25.0, DistanceSq(a, b), 1e-12)
	assert.True(t, Finite(a))
	assert.False(t, Finite(r2.Point{X: 1, Y: math.NaN()}))

	// one degree of longitude on the equator
	assert.InDelta(t, 111195.0, HaversineDistance(0, 0, 0, 1), 1)
}
