package models

// FieldSummary aggregates the most recent tick for dashboards
type FieldSummary struct {
	Clusters     int   `json:"clusters"`
	Members      int   `json:"members"`
	Convergences int   `json:"convergences"`
	UpdatedAt    int64 `json:"updatedAt"` // Unix milliseconds

	// Cluster size distribution
	SizeMedian float64 `json:"sizeMedian"`
	SizeP90    float64 `json:"sizeP90"`
	SizeMax    int     `json:"sizeMax"`

	// Member-weighted vibe mix
	Vibes         map[string]int `json:"vibes"`
	DominantVibe  Vibe           `json:"dominantVibe"`
	VibeDiversity float64        `json:"vibeDiversity"` // 0~1

	// Crowd flow over tracked centroids
	FlowHeading   float64 `json:"flowHeading"`   // degrees clockwise from screen up
	FlowAlignment float64 `json:"flowAlignment"` // 0~1
	MeanSpeed     float64 `json:"meanSpeed"`     // pixels per second

	Stages map[LifecycleStage]int `json:"stages"`
}
