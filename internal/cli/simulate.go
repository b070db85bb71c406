package cli

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/models"
)

// SimulateOptions shapes the synthetic crowd
type SimulateOptions struct {
	Groups       int
	TilesPerGrp  int
	Ticks        int
	Seed         uint64
	Interval     time.Duration
	Width        float64
	Height       float64
	Spread       float64
	MaxSpeed     float64
	MembersRange [2]int
}

var simOpts = SimulateOptions{
	Groups:       4,
	TilesPerGrp:  4,
	Ticks:        20,
	Seed:         1,
	Interval:     time.Second,
	Width:        1000,
	Height:       800,
	Spread:       12,
	MaxSpeed:     25,
	MembersRange: [2]int{2, 12},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the engine with groups drifting towards the centre of the screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simOpts.Groups <= 0 || simOpts.Ticks <= 0 || simOpts.TilesPerGrp <= 0 {
			return fmt.Errorf("groups, tiles and ticks must be positive")
		}
		if simOpts.Interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}

		ticks := GenerateTicks(simOpts)
		r := newRunner(cluster.DefaultConfig(), time.Now(), simOpts.Interval, zoomFlag)
		return r.run(cmd.OutOrStdout(), ticks, outputJSON)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simOpts.Groups, "groups", simOpts.Groups, "Number of moving groups")
	f.IntVar(&simOpts.TilesPerGrp, "tiles", simOpts.TilesPerGrp, "Tiles emitted per group per tick")
	f.IntVar(&simOpts.Ticks, "ticks", simOpts.Ticks, "Number of ticks to run")
	f.Uint64Var(&simOpts.Seed, "seed", simOpts.Seed, "Random seed")
	f.DurationVar(&simOpts.Interval, "interval", simOpts.Interval, "Synthetic time between ticks")
	f.Float64Var(&simOpts.MaxSpeed, "speed", simOpts.MaxSpeed, "Maximum group speed in px/s")
	rootCmd.AddCommand(simulateCmd)
}

type simGroup struct {
	x, y, vx, vy float64
	vibe         models.Vibe
	members      []int
	jitter       [][2]float64
}

// GenerateTicks builds a deterministic scenario for the given options.
// Groups start on a ring around the screen centre and drift inwards.
func GenerateTicks(opts SimulateOptions) []Tick {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	cx, cy := opts.Width/2, opts.Height/2
	radius := math.Min(opts.Width, opts.Height) * 0.4
	dt := opts.Interval.Seconds()

	groups := make([]*simGroup, opts.Groups)
	for g := range groups {
		angle := 2*math.Pi*float64(g)/float64(opts.Groups) + rng.Float64()*0.3
		speed := opts.MaxSpeed * (0.4 + 0.6*rng.Float64())
		grp := &simGroup{
			x:    cx + radius*math.Cos(angle),
			y:    cy + radius*math.Sin(angle),
			vx:   -speed * math.Cos(angle),
			vy:   -speed * math.Sin(angle),
			vibe: models.Vibe(1 + rng.IntN(10)),
		}
		for i := 0; i < opts.TilesPerGrp; i++ {
			lo, hi := opts.MembersRange[0], opts.MembersRange[1]
			grp.members = append(grp.members, lo+rng.IntN(hi-lo+1))
			grp.jitter = append(grp.jitter, [2]float64{
				(rng.Float64()*2 - 1) * opts.Spread,
				(rng.Float64()*2 - 1) * opts.Spread,
			})
		}
		groups[g] = grp
	}

	ticks := make([]Tick, 0, opts.Ticks)
	for t := 0; t < opts.Ticks; t++ {
		var tiles []models.RawTile
		for g, grp := range groups {
			for i, members := range grp.members {
				tiles = append(tiles, models.RawTile{
					ID:    fmt.Sprintf("g%d-t%d", g, i),
					X:     grp.x + grp.jitter[i][0],
					Y:     grp.y + grp.jitter[i][1],
					R:     opts.Spread,
					Count: members,
					Vibe:  grp.vibe,
				})
			}
			grp.x += grp.vx * dt
			grp.y += grp.vy * dt
		}
		ticks = append(ticks, Tick{Tiles: tiles})
	}
	return ticks
}
