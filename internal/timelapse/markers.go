package timelapse

import (
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/stats"
)

// Marker thresholds
const (
	cascadeSaturation = 6.0
	auroraSaturation  = 3.0
	peakThreshold     = 0.75
)

// ExtractMarkers derives timeline markers from a single frame.
// hotspots is an externally supplied count of active convergence hotspots.
func ExtractMarkers(frame *models.Frame, hotspots int) []models.Marker {
	if frame == nil {
		return nil
	}

	var markers []models.Marker
	if hotspots > 0 {
		markers = append(markers, models.Marker{
			Timestamp: frame.Timestamp,
			Kind:      models.MarkerCascade,
			Strength:  min(1, float64(hotspots)/cascadeSaturation),
		})
	}

	if frame.Aurora >= 1 {
		markers = append(markers, models.Marker{
			Timestamp: frame.Timestamp,
			Kind:      models.MarkerAurora,
			Strength:  min(1, float64(frame.Aurora)/auroraSaturation),
		})
	}

	if frame.StormCount() > 0 {
		mean := stats.MeanStride(frame.Storms[:3*frame.StormCount()], 2, 3)
		if mean > peakThreshold {
			markers = append(markers, models.Marker{
				Timestamp: frame.Timestamp,
				Kind:      models.MarkerPeak,
				Strength:  stats.Clamp01((mean - peakThreshold) / (1 - peakThreshold)),
			})
		}
	}
	return markers
}
