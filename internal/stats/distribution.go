package stats

import (
	"math"
	"sort"
)

// Sum returns the sum of values
func Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// Quantile returns the q-th quantile (0-1) of sorted values using linear
// interpolation between closest ranks
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	q = Clamp01(q)

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Percentile calculates the p-th percentile (0-100) without modifying values
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Quantile(sorted, p/100)
}

// NormalizedEntropy returns the Shannon entropy of the counts divided by
// log2(categories), so 0 means a single category and 1 an even spread.
// categories is the size of the closed category set, not len(counts).
func NormalizedEntropy(counts []float64, categories int) float64 {
	if categories <= 1 {
		return 0
	}

	total := Sum(counts)
	if total <= 0 {
		return 0
	}

	var entropy float64
	for _, c := range counts {
		if c > 0 {
			p := c / total
			entropy -= p * math.Log2(p)
		}
	}
	return Clamp01(entropy / math.Log2(float64(categories)))
}
