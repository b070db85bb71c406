// Package cli implements the fieldctl command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	outputJSON bool
	zoomFlag   float64
)

var rootCmd = &cobra.Command{
	Use:           "fieldctl",
	Short:         "Offline driver for the social field engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print one JSON object per tick")
	rootCmd.PersistentFlags().Float64Var(&zoomFlag, "zoom", 15, "Map zoom level used when a tick does not set one")
}
