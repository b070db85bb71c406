package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}

	assert.Equal(t, 3.0, Percentile(values, 50))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 5.0, Percentile(values, 100))
	assert.InDelta(t, 4.6, Percentile(values, 90), 1e-9)
	assert.Equal(t, 5.0, Percentile(values, 250))
	assert.Zero(t, Percentile(nil, 50))

	// input is left untouched
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{10, 20}
	assert.Equal(t, 15.0, Quantile(sorted, 0.5))
	assert.Equal(t, 10.0, Quantile(sorted, -1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.3))
}

func TestNormalizedEntropy(t *testing.T) {
	assert.Zero(t, NormalizedEntropy([]float64{9, 0, 0, 0}, 4))
	assert.InDelta(t, 1.0, NormalizedEntropy([]float64{3, 3, 3, 3}, 4), 1e-12)
	assert.InDelta(t, 0.5, NormalizedEntropy([]float64{5, 5}, 4), 1e-12)
	assert.Zero(t, NormalizedEntropy(nil, 4))
	assert.Zero(t, NormalizedEntropy([]float64{1}, 1))
	assert.Equal(t, 6.0, Sum([]float64{1, 2, 3}))
}
