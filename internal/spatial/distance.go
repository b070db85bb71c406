package spatial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Distance returns the planar distance between two screen points
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// DistanceSq returns the squared planar distance between two screen points
func DistanceSq(a, b r2.Point) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// WeightedMidpoint folds point b with weight wb into point a with weight wa.
// Returns a unchanged when the combined weight is not positive.
func WeightedMidpoint(a r2.Point, wa float64, b r2.Point, wb float64) r2.Point {
	total := wa + wb
	if total <= 0 {
		return a
	}
	return a.Mul(wa / total).Add(b.Mul(wb / total))
}

// Finite reports whether both coordinates are real numbers
func Finite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)
