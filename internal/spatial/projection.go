package spatial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

const (
	// TileSize is the Web Mercator tile edge in pixels
	TileSize = 256.0

	// MaxMercatorLat is the latitude where Web Mercator is cut off
	MaxMercatorLat = 85.05112878
)

// Viewport describes the screen projection that presence tiles live in
type Viewport struct {
	CenterLat float64 `json:"centerLat"`
	CenterLon float64 `json:"centerLon"`
	Zoom      float64 `json:"zoom"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Valid reports whether the viewport has a real centre and a screen size
func (v Viewport) Valid() bool {
	return s2.LatLngFromDegrees(v.CenterLat, v.CenterLon).IsValid() && v.Width > 0 && v.Height > 0
}

// WorldPixel projects a coordinate to global Web Mercator pixels at zoom
func WorldPixel(lat, lon, zoom float64) r2.Point {
	ll := s2.LatLngFromDegrees(lat, lon).Normalized()
	scale := TileSize * math.Exp2(zoom)

	latDeg := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, ll.Lat.Degrees()))
	sinLat := math.Sin(latDeg * math.Pi / 180)

	x := (ll.Lng.Degrees() + 180) / 360 * scale
	y := (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * scale
	return r2.Point{X: x, Y: y}
}

// Project maps a coordinate to screen pixels, origin at the top-left corner
func (v Viewport) Project(lat, lon float64) r2.Point {
	p := WorldPixel(lat, lon, v.Zoom)
	c := WorldPixel(v.CenterLat, v.CenterLon, v.Zoom)
	return p.Sub(c).Add(r2.Point{X: v.Width / 2, Y: v.Height / 2})
}

// Discontinuous reports whether moving from v to next invalidates
// position-derived history: a zoom change of more than one level, or a
// centre jump larger than one screen.
func (v Viewport) Discontinuous(next Viewport) bool {
	if !v.Valid() || !next.Valid() {
		return false
	}
	if math.Abs(next.Zoom-v.Zoom) > 1 {
		return true
	}
	shift := v.Project(next.CenterLat, next.CenterLon).Sub(r2.Point{X: v.Width / 2, Y: v.Height / 2})
	return shift.Norm() > math.Max(v.Width, v.Height)
}
