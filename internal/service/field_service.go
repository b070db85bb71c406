package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/spatial"
	"github.com/jengzang/floq-field/internal/stats"
	"github.com/jengzang/floq-field/internal/stream"
)

// ErrNoViewport is returned when geographic tiles arrive without a viewport
var ErrNoViewport = errors.New("lat/lon tiles require a viewport")

// Broadcaster pushes events to live subscribers
type Broadcaster interface {
	Broadcast(eventType string, data any) error
}

// TileInput is a presence tile as submitted by clients. Either X/Y (screen
// pixels) or Lat/Lon must be set.
type TileInput struct {
	ID    string      `json:"id"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Lat   *float64    `json:"lat,omitempty"`
	Lon   *float64    `json:"lon,omitempty"`
	R     float64     `json:"r"`
	Count int         `json:"count"`
	Vibe  models.Vibe `json:"vibe"`
}

// TickRequest is one frame of field input
type TickRequest struct {
	Tiles    []TileInput       `json:"tiles"`
	Zoom     float64           `json:"zoom"`
	Viewport *spatial.Viewport `json:"viewport,omitempty"`
}

// TickResult is the output of one frame
type TickResult struct {
	Clusters []models.SocialCluster `json:"clusters"`
	Signals  models.SignalResult    `json:"signals"`
	Reset    bool                   `json:"reset,omitempty"`
}

// FieldService drives the clustering worker and keeps the last frame for
// the time-lapse accessor
type FieldService struct {
	worker *cluster.Worker
	hub    Broadcaster
	now    func() time.Time

	mu          sync.RWMutex
	viewport    spatial.Viewport
	hasViewport bool
	clusters    []models.SocialCluster
	signals     models.SignalResult
	velocities  []models.CentroidState
	updated     time.Time
}

// NewFieldService creates a field service. hub may be nil.
func NewFieldService(worker *cluster.Worker, hub Broadcaster) *FieldService {
	return &FieldService{
		worker: worker,
		hub:    hub,
		now:    time.Now,
	}
}

// Tick clusters the tiles, runs convergence detection and publishes the
// result. A discontinuous viewport change resets the engine first.
func (s *FieldService) Tick(ctx context.Context, req TickRequest) (*TickResult, error) {
	zoom := req.Zoom
	if req.Viewport != nil && zoom == 0 {
		zoom = req.Viewport.Zoom
	}

	reset, err := s.trackViewport(ctx, req.Viewport)
	if err != nil {
		return nil, err
	}

	tiles, err := s.resolveTiles(req.Tiles, req.Viewport)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pass, err := s.worker.Tick(ctx, tiles, zoom, now)
	if err != nil {
		return nil, fmt.Errorf("failed to run tick: %w", err)
	}

	s.mu.Lock()
	s.clusters = pass.Clusters
	s.signals = pass.Signals
	s.velocities = pass.Velocities
	s.updated = now
	s.mu.Unlock()

	result := &TickResult{Clusters: pass.Clusters, Signals: pass.Signals, Reset: reset}
	s.publish(stream.EventTick, result)
	return result, nil
}

// Cluster runs a clustering pass without convergence detection
func (s *FieldService) Cluster(ctx context.Context, tiles []TileInput, zoom float64, viewport *spatial.Viewport) ([]models.SocialCluster, error) {
	raw, err := s.resolveTiles(tiles, viewport)
	if err != nil {
		return nil, err
	}
	return s.worker.Cluster(ctx, raw, zoom)
}

// Signals runs convergence detection on caller-supplied clusters
func (s *FieldService) Signals(ctx context.Context, clusters []models.SocialCluster, zoom float64) (models.SignalResult, error) {
	return s.worker.Signals(ctx, clusters, zoom, s.now())
}

// HitTest returns ids of clusters under a screen point
func (s *FieldService) HitTest(ctx context.Context, x, y, radius float64) ([]string, error) {
	return s.worker.HitTest(ctx, x, y, radius)
}

// Reset clears all engine history and the cached frame
func (s *FieldService) Reset(ctx context.Context) error {
	if err := s.worker.Reset(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.clusters = nil
	s.signals = models.SignalResult{}
	s.velocities = nil
	s.updated = time.Time{}
	s.hasViewport = false
	s.mu.Unlock()

	s.publish(stream.EventReset, nil)
	return nil
}

// Snapshot builds the time-lapse input from the most recent tick
func (s *FieldService) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Flow:     make([]models.FlowVector, 0, len(s.velocities)),
		Storms:   make([]models.StormPoint, 0, len(s.clusters)),
		Hotspots: len(s.signals.Convergences),
	}
	for _, v := range s.velocities {
		snap.Flow = append(snap.Flow, models.FlowVector{X: v.X, Y: v.Y, VX: v.VX, VY: v.VY})
	}
	for _, c := range s.clusters {
		snap.Storms = append(snap.Storms, models.StormPoint{
			X:         c.X,
			Y:         c.Y,
			Intensity: c.EnergyLevel * c.CohesionScore,
		})
		if c.LifecycleStage == models.StagePeaking {
			snap.AuroraActive++
		}
	}
	return snap
}

// Summary aggregates the most recent tick
func (s *FieldService) Summary() models.FieldSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := models.FieldSummary{
		Clusters:     len(s.clusters),
		Convergences: len(s.signals.Convergences),
		Vibes:        make(map[string]int),
		Stages:       make(map[models.LifecycleStage]int),
	}
	if !s.updated.IsZero() {
		sum.UpdatedAt = s.updated.UnixMilli()
	}

	sizes := make([]float64, 0, len(s.clusters))
	vibeCounts := make([]float64, models.VibeCount)
	for _, c := range s.clusters {
		sum.Members += c.Count
		sum.Stages[c.LifecycleStage]++
		sizes = append(sizes, float64(c.Count))
		if c.Count > sum.SizeMax {
			sum.SizeMax = c.Count
		}
		if c.Vibe.Valid() {
			vibeCounts[c.Vibe] += float64(c.Count)
			sum.Vibes[c.Vibe.String()] += c.Count
		}
	}
	sum.SizeMedian = stats.Percentile(sizes, 50)
	sum.SizeP90 = stats.Percentile(sizes, 90)
	sum.VibeDiversity = stats.NormalizedEntropy(vibeCounts, models.VibeCount)

	// ties go to the lower vibe
	for v, n := range vibeCounts {
		if n > vibeCounts[sum.DominantVibe] {
			sum.DominantVibe = models.Vibe(v)
		}
	}

	flow := make([]r2.Point, 0, len(s.velocities))
	speeds := make([]float64, 0, len(s.velocities))
	for _, v := range s.velocities {
		p := r2.Point{X: v.VX, Y: v.VY}
		flow = append(flow, p)
		speeds = append(speeds, p.Norm())
	}
	sum.FlowHeading, sum.FlowAlignment = spatial.MeanHeading(flow)
	sum.MeanSpeed = stats.Mean(speeds)
	return sum
}

// trackViewport remembers the latest viewport and resets the engine when
// the view jumps
func (s *FieldService) trackViewport(ctx context.Context, next *spatial.Viewport) (bool, error) {
	if next == nil || !next.Valid() {
		return false, nil
	}

	s.mu.Lock()
	prev, had := s.viewport, s.hasViewport
	s.viewport, s.hasViewport = *next, true
	s.mu.Unlock()

	if !had || !prev.Discontinuous(*next) {
		return false, nil
	}

	jump := spatial.HaversineDistance(prev.CenterLat, prev.CenterLon, next.CenterLat, next.CenterLon)
	log.Printf("[FieldService] Viewport jump (%.0fm, zoom %.1f -> %.1f), resetting engine", jump, prev.Zoom, next.Zoom)

	if err := s.worker.Reset(ctx); err != nil {
		return false, fmt.Errorf("failed to reset engine: %w", err)
	}
	s.publish(stream.EventReset, nil)
	return true, nil
}

// resolveTiles projects geographic tiles into screen space
func (s *FieldService) resolveTiles(in []TileInput, viewport *spatial.Viewport) ([]models.RawTile, error) {
	out := make([]models.RawTile, 0, len(in))
	for _, t := range in {
		tile := models.RawTile{ID: t.ID, X: t.X, Y: t.Y, R: t.R, Count: t.Count, Vibe: t.Vibe}
		if t.Lat != nil && t.Lon != nil {
			if viewport == nil || !viewport.Valid() {
				return nil, ErrNoViewport
			}
			p := viewport.Project(*t.Lat, *t.Lon)
			tile.X, tile.Y = p.X, p.Y
		}
		out = append(out, tile)
	}
	return out, nil
}

func (s *FieldService) publish(eventType string, data any) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(eventType, data); err != nil {
		log.Printf("[FieldService] Broadcast %s failed: %v", eventType, err)
	}
}
