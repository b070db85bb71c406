package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/floq-field/internal/cluster"
)

// Scenario is a recorded or hand-written list of ticks
type Scenario struct {
	Name     string        `yaml:"name"`
	Zoom     float64       `yaml:"zoom"`
	Interval time.Duration `yaml:"interval"`
	KFloor   int           `yaml:"kFloor"`
	Ticks    []Tick        `yaml:"ticks"`
}

// LoadScenario reads a YAML scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if len(sc.Ticks) == 0 {
		return nil, fmt.Errorf("scenario %s has no ticks", path)
	}
	if sc.Interval <= 0 {
		sc.Interval = time.Second
	}
	return &sc, nil
}

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a YAML scenario through the engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := LoadScenario(args[0])
		if err != nil {
			return err
		}

		cfg := cluster.DefaultConfig()
		if sc.KFloor > 0 {
			cfg.KAnonymityFloor = sc.KFloor
		}
		zoom := zoomFlag
		if sc.Zoom != 0 && !cmd.Flags().Changed("zoom") {
			zoom = sc.Zoom
		}

		if !outputJSON && sc.Name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s: %d ticks every %s\n", sc.Name, len(sc.Ticks), sc.Interval)
		}
		r := newRunner(cfg, time.Now(), sc.Interval, zoom)
		return r.run(cmd.OutOrStdout(), sc.Ticks, outputJSON)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
