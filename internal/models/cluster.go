package models

// RawTile is a single observed presence point for one clustering pass.
// Position and radius are in screen pixels.
type RawTile struct {
	ID    string  `json:"id" yaml:"id"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	R     float64 `json:"r" yaml:"r"`
	Count int     `json:"count" yaml:"count"`
	Vibe  Vibe    `json:"vibe" yaml:"vibe"`
}

// LifecycleStage classifies a cluster's age and trend
type LifecycleStage string

const (
	StageForming    LifecycleStage = "forming"
	StageStable     LifecycleStage = "stable"
	StagePeaking    LifecycleStage = "peaking"
	StageDispersing LifecycleStage = "dispersing"
)

// SocialCluster is the clustering engine's output unit.
// It carries aggregate identity only; contributing tile ids never leave the engine.
type SocialCluster struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	R     float64 `json:"r"`
	Count int     `json:"count"`
	Vibe  Vibe    `json:"vibe"`

	CohesionScore  float64        `json:"cohesionScore"` // 0~1
	LifecycleStage LifecycleStage `json:"lifecycleStage"`

	// Social physics, recomputed every tick
	BreathingPhase float64 `json:"breathingPhase"` // radians, [0, 2π)
	BreathingRate  float64 `json:"breathingRate"`  // breaths per minute, 20~35
	PulseIntensity float64 `json:"pulseIntensity"` // 0~1
	GlowRadius     float64 `json:"glowRadius"`
	EnergyLevel    float64 `json:"energyLevel"`   // 0~1
	SocialGravity  float64 `json:"socialGravity"` // 0~1

	FormationTime int64 `json:"formationTime"` // Unix milliseconds
}

// CentroidState is the per-cluster velocity tracking record.
// Velocities are in pixels per second.
type CentroidState struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	Cohesion  float64 `json:"cohesion"`
	Count     int     `json:"count"`
}

// ConvergenceEvent is a predicted future meeting between two clusters
type ConvergenceEvent struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	MeetX      float64 `json:"meetX"`
	MeetY      float64 `json:"meetY"`
	EtaMs      float64 `json:"etaMs"`
	DStar      float64 `json:"dStar"`
	Confidence float64 `json:"confidence"` // 0~1
}

// SignalResult is the response of one convergence pass
type SignalResult struct {
	Convergences []ConvergenceEvent `json:"convergences"`
	ComputedAt   int64              `json:"computedAt"` // Unix milliseconds
	Throttled    bool               `json:"throttled,omitempty"`
}
