// Package commands implements the sensormgrd CLI surface, grounded on the
// cobra command-tree layout of marmos91-dittofs's cmd/dittofs/commands
// package (a persistent --config flag on a silent root command, one file
// per subcommand).
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "sensormgrd",
	Short:         "Sensor-hub arbiter daemon",
	Long:          "sensormgrd arbitrates client sample-rate requests across a fixed population of sensors, dispatching power, firmware, and rate operations to in-process or out-of-process drivers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to daemon config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
}
