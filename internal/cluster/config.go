package cluster

import (
	"math"
	"time"
)

// Config holds every tunable of the clustering engine
type Config struct {
	// Privacy
	KAnonymityFloor int // minimum members a tile needs before it may contribute

	// Merging
	BaseMergeDistance  float64 // pixels at MergeReferenceZoom
	MergeReferenceZoom float64

	// Lifecycle
	FormingWindow   time.Duration
	GrowthThreshold float64 // relative growth/shrink that flips forming/dispersing
	PeakCount       int
	PeakCohesion    float64
	HistoryTTL      time.Duration
	FirstSightDt    time.Duration // synthetic step assumed on first observation

	// Convergence
	SignalInterval         time.Duration
	MinConvergenceZoom     float64
	ConvergenceCellSize    float64 // also the max consideration distance
	ConvergenceMinCount    int
	ConvergenceMinCohesion float64
	Horizon                time.Duration
	MaxDStar               float64 // pixels
	MinApproachSpeed       float64 // pixels per second
}

// DefaultConfig returns the tuned defaults
func DefaultConfig() Config {
	return Config{
		KAnonymityFloor: 3,

		BaseMergeDistance:  480,
		MergeReferenceZoom: 11,

		FormingWindow:   30 * time.Second,
		GrowthThreshold: 0.3,
		PeakCount:       30,
		PeakCohesion:    0.8,
		HistoryTTL:      5 * time.Minute,
		FirstSightDt:    16 * time.Millisecond,

		SignalInterval:         100 * time.Millisecond,
		MinConvergenceZoom:     12,
		ConvergenceCellSize:    600,
		ConvergenceMinCount:    5,
		ConvergenceMinCohesion: 0.4,
		Horizon:                30 * time.Second,
		MaxDStar:               40,
		MinApproachSpeed:       5,
	}
}

const (
	minZoom = 0
	maxZoom = 24
)

// MergeDistance returns the merge radius in pixels for a zoom level.
// The radius halves with every zoom level in.
func (c Config) MergeDistance(zoom float64) float64 {
	if math.IsNaN(zoom) {
		zoom = c.MergeReferenceZoom
	}
	zoom = math.Max(minZoom, math.Min(maxZoom, zoom))
	return c.BaseMergeDistance * math.Exp2(c.MergeReferenceZoom-zoom)
}
