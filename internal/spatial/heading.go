package spatial

import (
	"math"

	"github.com/golang/geo/r2"
)

// HeadingDegrees returns the screen heading of v in degrees, clockwise from
// screen up (0 = north, 90 = east). Screen y grows downwards.
func HeadingDegrees(v r2.Point) float64 {
	deg := math.Atan2(v.X, -v.Y) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// MeanHeading returns the speed-weighted circular mean heading of the
// vectors and their mean resultant length. The length is 0 when the
// vectors cancel out and 1 when they all point the same way.
func MeanHeading(vectors []r2.Point) (heading, alignment float64) {
	var sum r2.Point
	var speed float64
	for _, v := range vectors {
		if !Finite(v) {
			continue
		}
		sum = sum.Add(v)
		speed += v.Norm()
	}
	if speed == 0 {
		return 0, 0
	}
	return HeadingDegrees(sum), math.Min(sum.Norm()/speed, 1)
}
