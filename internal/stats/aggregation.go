package stats

import "math"

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanStride calculates the mean of every stride-th value starting at offset.
// Used on packed float32 buffers (e.g. the intensity slot of x,y,i triples).
func MeanStride(values []float32, offset, stride int) float64 {
	if stride <= 0 || offset < 0 {
		return 0
	}

	var sum float64
	n := 0
	for i := offset; i < len(values); i += stride {
		sum += float64(values[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1]
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}
