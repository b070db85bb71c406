package cluster

import (
	"math"
	"time"

	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/stats"
)

const (
	// Cohesion blend
	densityWeight   = 0.7
	mergeWeight     = 0.3
	areaPerMember   = 100.0 // px² a member occupies at full density
	mergeSaturation = 4.0   // merged tiles beyond the first before the merge signal saturates

	// Breathing, in breaths per minute
	minBreathingRate   = 20.0
	maxBreathingRate   = 35.0
	breathSaturation   = 50.0
	energySaturation   = 40.0
	gravitySaturation  = 100.0
	glowPulseExpansion = 0.5
)

var stageEnergy = map[models.LifecycleStage]float64{
	models.StageForming:    0.85,
	models.StageStable:     0.75,
	models.StagePeaking:    1.0,
	models.StageDispersing: 0.5,
}

// cohesion blends normalised spatial density with the merge-count signal
func cohesion(count int, r float64, tiles int) float64 {
	area := math.Pi * r * r
	if area < math.Pi {
		area = math.Pi
	}
	density := stats.Clamp01(float64(count) * areaPerMember / area)
	merged := stats.Clamp01(float64(tiles-1) / mergeSaturation)
	return stats.Clamp01(densityWeight*density + mergeWeight*merged)
}

// classify derives the lifecycle stage from age and growth since last seen
func (c Config) classify(age time.Duration, growth float64, count int, cohesion float64) models.LifecycleStage {
	switch {
	case age < c.FormingWindow || growth > c.GrowthThreshold:
		return models.StageForming
	case growth < -c.GrowthThreshold:
		return models.StageDispersing
	case count >= c.PeakCount && cohesion >= c.PeakCohesion:
		return models.StagePeaking
	default:
		return models.StageStable
	}
}

func breathingRate(count int) float64 {
	return minBreathingRate + (maxBreathingRate-minBreathingRate)*stats.Clamp01(float64(count)/breathSaturation)
}

func energyLevel(count int, stage models.LifecycleStage) float64 {
	base := 0.25 + 0.75*stats.Clamp01(float64(count)/energySaturation)
	return stats.Clamp01(base * stageEnergy[stage])
}

// enrich finalises an in-progress cluster and updates its history entry
func (e *Engine) enrich(p *pending, now time.Time) models.SocialCluster {
	id := StableID(p.tileIDs)
	coh := cohesion(p.count, p.r, len(p.tileIDs))

	formation := now
	growth := 0.0
	dt := e.cfg.FirstSightDt
	phase := 0.0
	if prev, ok := e.history[id]; ok {
		formation = prev.formation
		phase = prev.phase
		if prev.count > 0 {
			growth = float64(p.count-prev.count) / float64(prev.count)
		}
		dt = now.Sub(prev.lastSeen)
		if dt < 0 {
			dt = 0
		}
	}

	stage := e.cfg.classify(now.Sub(formation), growth, p.count, coh)
	rate := breathingRate(p.count)
	energy := energyLevel(p.count, stage)
	pulse := stats.Clamp01(0.5*coh + 0.5*energy)
	phase = math.Mod(phase+(rate/60)*2*math.Pi*dt.Seconds(), 2*math.Pi)

	e.history[id] = &historyEntry{
		count:     p.count,
		lastSeen:  now,
		formation: formation,
		phase:     phase,
	}

	return models.SocialCluster{
		ID:             id,
		X:              p.pos.X,
		Y:              p.pos.Y,
		R:              p.r,
		Count:          p.count,
		Vibe:           p.dominantVibe(),
		CohesionScore:  coh,
		LifecycleStage: stage,
		BreathingPhase: phase,
		BreathingRate:  rate,
		PulseIntensity: pulse,
		GlowRadius:     p.r * (1 + glowPulseExpansion*pulse),
		EnergyLevel:    energy,
		SocialGravity:  stats.Clamp01(coh * math.Log1p(float64(p.count)) / math.Log1p(gravitySaturation)),
		FormationTime:  formation.UnixMilli(),
	}
}
