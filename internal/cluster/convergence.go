package cluster

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/spatial"
	"github.com/jengzang/floq-field/internal/stats"
)

// Confidence blend
const (
	proximityWeight = 0.35
	speedWeight     = 0.35
	cohesionWeight  = 0.30
	speedSaturation = 4.0 // multiples of MinApproachSpeed that score full marks
)

// Approach is the closest point of approach of two linearly moving centroids
type Approach struct {
	TStar         float64  // seconds from now; +Inf when relative velocity is zero
	DStar         float64  // pixels
	Meet          r2.Point // midpoint of both centroids at TStar
	ApproachSpeed float64  // closing speed along the line of centres, px/s
}

// ClosestApproach solves for the time of minimum separation under constant
// velocity. The result does not depend on argument order.
func ClosestApproach(a, b models.CentroidState) Approach {
	pa, pb := r2.Point{X: a.X, Y: a.Y}, r2.Point{X: b.X, Y: b.Y}
	va, vb := r2.Point{X: a.VX, Y: a.VY}, r2.Point{X: b.VX, Y: b.VY}

	r := pb.Sub(pa)
	v := vb.Sub(va)
	rv := r.Dot(v)

	var speed float64
	if n := r.Norm(); n > 0 {
		speed = -rv / n
	}

	vv := v.Dot(v)
	if vv == 0 {
		return Approach{
			TStar:         math.Inf(1),
			DStar:         r.Norm(),
			Meet:          pa.Add(pb).Mul(0.5),
			ApproachSpeed: speed,
		}
	}

	t := -rv / vv
	return Approach{
		TStar:         t,
		DStar:         r.Add(v.Mul(t)).Norm(),
		Meet:          pa.Add(va.Mul(t)).Add(pb.Add(vb.Mul(t))).Mul(0.5),
		ApproachSpeed: speed,
	}
}

// Signals predicts convergence events between the given clusters.
//
// Calls within SignalInterval of the previous computation return the cached
// result marked Throttled. Below MinConvergenceZoom nothing is predicted and
// velocity tracking restarts.
func (e *Engine) Signals(clusters []models.SocialCluster, zoom float64, now time.Time) models.SignalResult {
	if !e.lastSignal.IsZero() {
		if elapsed := now.Sub(e.lastSignal); elapsed >= 0 && elapsed < e.cfg.SignalInterval {
			res := e.lastResult
			res.Convergences = append([]models.ConvergenceEvent(nil), e.lastResult.Convergences...)
			res.Throttled = true
			return res
		}
	}
	e.lastSignal = now

	if math.IsNaN(zoom) || zoom < e.cfg.MinConvergenceZoom {
		e.velocity = make(map[string]models.CentroidState)
		e.lastResult = models.SignalResult{ComputedAt: now.UnixMilli()}
		return e.lastResult
	}

	states := e.trackVelocities(clusters, now)

	grid := spatial.NewBinGrid(e.cfg.ConvergenceCellSize)
	for i, s := range states {
		grid.Insert(i, r2.Point{X: s.X, Y: s.Y})
	}

	var events []models.ConvergenceEvent
	grid.CandidatePairs(func(i, j int) {
		if ev, ok := e.predict(states[i], states[j]); ok {
			events = append(events, ev)
		}
	})

	sort.Slice(events, func(i, j int) bool {
		if events[i].Confidence != events[j].Confidence {
			return events[i].Confidence > events[j].Confidence
		}
		if events[i].A != events[j].A {
			return events[i].A < events[j].A
		}
		return events[i].B < events[j].B
	})

	e.lastResult = models.SignalResult{
		Convergences: events,
		ComputedAt:   now.UnixMilli(),
	}
	res := e.lastResult
	res.Convergences = append([]models.ConvergenceEvent(nil), events...)
	return res
}

// Velocities returns a copy of the current velocity map
func (e *Engine) Velocities() []models.CentroidState {
	out := make([]models.CentroidState, 0, len(e.velocity))
	for _, s := range e.velocity {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trackVelocities rebuilds the velocity map by finite difference against
// the previous tick. A first sighting assumes a synthetic FirstSightDt step
// from the same position, so it starts at zero velocity.
func (e *Engine) trackVelocities(clusters []models.SocialCluster, now time.Time) []models.CentroidState {
	nowMs := now.UnixMilli()
	next := make(map[string]models.CentroidState, len(clusters))
	states := make([]models.CentroidState, 0, len(clusters))

	for _, c := range clusters {
		if _, dup := next[c.ID]; dup || !spatial.Finite(r2.Point{X: c.X, Y: c.Y}) {
			continue
		}

		prev, ok := e.velocity[c.ID]
		if !ok {
			prev = models.CentroidState{
				X:         c.X,
				Y:         c.Y,
				Timestamp: nowMs - e.cfg.FirstSightDt.Milliseconds(),
			}
		}

		vx, vy := prev.VX, prev.VY
		if dtMs := nowMs - prev.Timestamp; dtMs > 0 {
			dt := float64(dtMs) / 1000
			vx = (c.X - prev.X) / dt
			vy = (c.Y - prev.Y) / dt
		}

		s := models.CentroidState{
			ID:        c.ID,
			X:         c.X,
			Y:         c.Y,
			VX:        vx,
			VY:        vy,
			Timestamp: nowMs,
			Cohesion:  c.CohesionScore,
			Count:     c.Count,
		}
		next[c.ID] = s
		states = append(states, s)
	}

	e.velocity = next
	return states
}

// predict applies the pair filters and scores a surviving pair
func (e *Engine) predict(a, b models.CentroidState) (models.ConvergenceEvent, bool) {
	if a.Count < e.cfg.ConvergenceMinCount || b.Count < e.cfg.ConvergenceMinCount {
		return models.ConvergenceEvent{}, false
	}
	if a.Cohesion < e.cfg.ConvergenceMinCohesion && b.Cohesion < e.cfg.ConvergenceMinCohesion {
		return models.ConvergenceEvent{}, false
	}

	ap := ClosestApproach(a, b)
	if math.IsInf(ap.TStar, 0) || ap.TStar < 0 || ap.TStar > e.cfg.Horizon.Seconds() {
		return models.ConvergenceEvent{}, false
	}
	if ap.DStar > e.cfg.MaxDStar || ap.ApproachSpeed < e.cfg.MinApproachSpeed {
		return models.ConvergenceEvent{}, false
	}

	proximity := stats.Clamp01(1 - ap.DStar/e.cfg.MaxDStar)
	speed := stats.Clamp01(ap.ApproachSpeed / (e.cfg.MinApproachSpeed * speedSaturation))
	coh := stats.Clamp01(math.Max(a.Cohesion, b.Cohesion))

	if b.ID < a.ID {
		a, b = b, a
	}
	return models.ConvergenceEvent{
		A:          a.ID,
		B:          b.ID,
		MeetX:      ap.Meet.X,
		MeetY:      ap.Meet.Y,
		EtaMs:      ap.TStar * 1000,
		DStar:      ap.DStar,
		Confidence: stats.Clamp01(proximityWeight*proximity + speedWeight*speed + cohesionWeight*coh),
	}, true
}
