// Package cluster turns per-tick presence tiles into social clusters and
// predicts convergence between moving clusters.
package cluster

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/spatial"
)

// ErrInvalidTile is wrapped by every tile validation failure
var ErrInvalidTile = errors.New("invalid tile")

// historyEntry carries lifecycle continuity for one cluster id across ticks
type historyEntry struct {
	count     int
	lastSeen  time.Time
	formation time.Time
	phase     float64
}

// TickStats summarises the most recent Cluster call
type TickStats struct {
	Tiles    int `json:"tiles"`
	Dropped  int `json:"dropped"` // below the k-anonymity floor
	Invalid  int `json:"invalid"`
	Clusters int `json:"clusters"`
}

// Engine is the clustering and convergence engine.
//
// An Engine is not safe for concurrent use. Its history maps assume a
// single writer; host it in a Worker to share it between goroutines.
type Engine struct {
	cfg Config
	now func() time.Time

	history  map[string]*historyEntry
	velocity map[string]models.CentroidState
	last     []models.SocialCluster
	stats    TickStats

	lastSignal time.Time
	lastResult models.SignalResult
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used by Cluster
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine with empty history
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		now:      time.Now,
		history:  make(map[string]*historyEntry),
		velocity: make(map[string]models.CentroidState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// LastStats returns counters for the most recent Cluster call
func (e *Engine) LastStats() TickStats {
	return e.stats
}

// pending is an in-progress cluster during the greedy merge
type pending struct {
	pos     r2.Point
	r       float64
	count   int
	tileIDs []string
	vibes   [len(vibeSlots)]int
}

var vibeSlots = [...]models.Vibe{
	models.VibeUnknown, models.VibeChill, models.VibeHype, models.VibeSocial,
	models.VibeRomantic, models.VibeSolo, models.VibeWeird, models.VibeFlowing,
	models.VibeDown, models.VibeOpen, models.VibeCurious,
}

func (p *pending) fold(t models.RawTile, pos r2.Point) {
	p.pos = spatial.WeightedMidpoint(p.pos, float64(p.count), pos, float64(t.Count))
	p.r = math.Max(p.r, t.R)
	p.count += t.Count
	p.tileIDs = append(p.tileIDs, t.ID)
	p.vibes[vibeSlot(t.Vibe)] += t.Count
}

// dominantVibe picks the vibe with the largest member weight; ties go to
// the lower enum value so that input order does not matter
func (p *pending) dominantVibe() models.Vibe {
	best := 0
	for i, w := range p.vibes {
		if w > p.vibes[best] {
			best = i
		}
	}
	return vibeSlots[best]
}

func vibeSlot(v models.Vibe) int {
	if !v.Valid() {
		return 0
	}
	return int(v)
}

func validateTile(t models.RawTile) error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidTile)
	case t.Count <= 0:
		return fmt.Errorf("%w: non-positive count %d", ErrInvalidTile, t.Count)
	case !spatial.Finite(r2.Point{X: t.X, Y: t.Y}):
		return fmt.Errorf("%w: non-finite position (%v, %v)", ErrInvalidTile, t.X, t.Y)
	case math.IsNaN(t.R) || math.IsInf(t.R, 0) || t.R < 0:
		return fmt.Errorf("%w: bad radius %v", ErrInvalidTile, t.R)
	}
	return nil
}

// Cluster merges raw tiles into enriched social clusters.
//
// Tiles below the k-anonymity floor are discarded before any aggregation.
// Malformed tiles and repeats of an id already seen this pass are logged
// and skipped; the pass always completes.
func (e *Engine) Cluster(tiles []models.RawTile, zoom float64) []models.SocialCluster {
	now := e.now()
	mergeDist := e.cfg.MergeDistance(zoom)
	mergeDistSq := mergeDist * mergeDist

	st := TickStats{Tiles: len(tiles)}
	var groups []*pending
	seen := make(map[string]struct{}, len(tiles))

	for i := range tiles {
		t := tiles[i]
		if t.Count < e.cfg.KAnonymityFloor {
			st.Dropped++
			continue
		}
		if err := validateTile(t); err != nil {
			log.Printf("[ClusterEngine] Skipping tile %d: %v", i, err)
			st.Invalid++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			log.Printf("[ClusterEngine] Skipping tile %d: duplicate id", i)
			st.Invalid++
			continue
		}
		seen[t.ID] = struct{}{}

		pos := r2.Point{X: t.X, Y: t.Y}
		var target *pending
		for _, g := range groups {
			if spatial.DistanceSq(g.pos, pos) <= mergeDistSq {
				target = g
				break
			}
		}
		if target == nil {
			target = &pending{pos: pos}
			groups = append(groups, target)
		}
		target.fold(t, pos)
	}

	out := make([]models.SocialCluster, 0, len(groups))
	for _, g := range groups {
		out = append(out, e.enrich(g, now))
	}
	e.purge(now)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})

	st.Clusters = len(out)
	e.stats = st
	e.last = append(e.last[:0], out...)
	return out
}

// purge drops history entries unseen for longer than the TTL
func (e *Engine) purge(now time.Time) {
	for id, h := range e.history {
		if now.Sub(h.lastSeen) > e.cfg.HistoryTTL {
			delete(e.history, id)
		}
	}
}

// HitTest returns ids of the last computed clusters whose centre lies
// within radius of (x, y)
func (e *Engine) HitTest(x, y, radius float64) []string {
	p := r2.Point{X: x, Y: y}
	if !spatial.Finite(p) || radius < 0 {
		return nil
	}

	var ids []string
	for _, c := range e.last {
		if spatial.DistanceSq(p, r2.Point{X: c.X, Y: c.Y}) <= radius*radius {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Reset clears all position-derived state. Call it whenever the screen
// projection changes discontinuously.
func (e *Engine) Reset() {
	e.history = make(map[string]*historyEntry)
	e.velocity = make(map[string]models.CentroidState)
	e.last = nil
	e.stats = TickStats{}
	e.lastSignal = time.Time{}
	e.lastResult = models.SignalResult{}
}

// HistorySize returns the number of cluster ids with lifecycle history
func (e *Engine) HistorySize() int {
	return len(e.history)
}
