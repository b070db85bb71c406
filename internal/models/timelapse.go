package models

// FlowVector is a raw per-tick flow sample
type FlowVector struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// StormPoint is a raw per-tick storm intensity sample
type StormPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"` // 0~1
}

// Snapshot is what the time-lapse accessor returns for the current tick
type Snapshot struct {
	Flow         []FlowVector `json:"flow"`
	Storms       []StormPoint `json:"storms"`
	AuroraActive int          `json:"auroraActive"`
	Hotspots     int          `json:"hotspots"`
}

// Frame is a compact time-lapse snapshot. Immutable once pushed.
type Frame struct {
	Timestamp int64     `json:"timestamp"` // Unix milliseconds
	Flow      []float32 `json:"flow"`      // x,y,vx,vy quadruples
	Storms    []float32 `json:"storms"`    // x,y,intensity triples
	Aurora    uint8     `json:"aurora"`
}

// FlowCount returns the number of packed flow vectors
func (f *Frame) FlowCount() int {
	return len(f.Flow) / 4
}

// StormCount returns the number of packed storm triples
func (f *Frame) StormCount() int {
	return len(f.Storms) / 3
}

// MarkerKind is the type of a timeline annotation
type MarkerKind string

const (
	MarkerCascade MarkerKind = "cascade"
	MarkerAurora  MarkerKind = "aurora"
	MarkerPeak    MarkerKind = "peak"
)

// Marker is a lightweight timeline annotation derived from a frame
type Marker struct {
	Timestamp int64      `json:"timestamp"`
	Kind      MarkerKind `json:"kind"`
	Strength  float64    `json:"strength"` // 0~1
}
