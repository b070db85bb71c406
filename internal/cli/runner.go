package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/models"
)

// Tick is one frame of offline input
type Tick struct {
	Zoom  float64          `yaml:"zoom" json:"zoom,omitempty"`
	Tiles []models.RawTile `yaml:"tiles" json:"tiles"`
}

// TickOutput is what the runner reports per frame
type TickOutput struct {
	Tick     int                    `json:"tick"`
	At       int64                  `json:"at"`
	Clusters []models.SocialCluster `json:"clusters"`
	Signals  models.SignalResult    `json:"signals"`
	Stats    cluster.TickStats      `json:"stats"`
}

// runner replays ticks through an engine on a synthetic clock
type runner struct {
	engine   *cluster.Engine
	clock    time.Time
	interval time.Duration
	zoom     float64
}

func newRunner(cfg cluster.Config, start time.Time, interval time.Duration, zoom float64) *runner {
	r := &runner{clock: start, interval: interval, zoom: zoom}
	r.engine = cluster.New(cfg, cluster.WithClock(func() time.Time { return r.clock }))
	return r
}

func (r *runner) step(i int, tick Tick) TickOutput {
	zoom := tick.Zoom
	if zoom == 0 {
		zoom = r.zoom
	}

	clusters := r.engine.Cluster(tick.Tiles, zoom)
	signals := r.engine.Signals(clusters, zoom, r.clock)
	out := TickOutput{
		Tick:     i,
		At:       r.clock.UnixMilli(),
		Clusters: clusters,
		Signals:  signals,
		Stats:    r.engine.LastStats(),
	}
	r.clock = r.clock.Add(r.interval)
	return out
}

func (r *runner) run(w io.Writer, ticks []Tick, asJSON bool) error {
	enc := json.NewEncoder(w)
	for i, tick := range ticks {
		out := r.step(i, tick)
		if asJSON {
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode tick %d: %w", i, err)
			}
			continue
		}
		if err := printTick(w, out); err != nil {
			return err
		}
	}
	return nil
}

func printTick(w io.Writer, out TickOutput) error {
	if _, err := fmt.Fprintf(w, "tick %d: %d clusters (%d tiles, %d dropped, %d invalid)\n",
		out.Tick, len(out.Clusters), out.Stats.Tiles, out.Stats.Dropped, out.Stats.Invalid); err != nil {
		return err
	}
	for _, c := range out.Clusters {
		fmt.Fprintf(w, "  %s  (%.0f,%.0f) n=%d %s %s cohesion=%.2f energy=%.2f\n",
			shortID(c.ID), c.X, c.Y, c.Count, c.Vibe, c.LifecycleStage, c.CohesionScore, c.EnergyLevel)
	}
	for _, ev := range out.Signals.Convergences {
		fmt.Fprintf(w, "  converge %s + %s at (%.0f,%.0f) in %.1fs, confidence %.2f\n",
			shortID(ev.A), shortID(ev.B), ev.MeetX, ev.MeetY, ev.EtaMs/1000, ev.Confidence)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
