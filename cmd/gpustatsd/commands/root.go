package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Build info, set by Execute.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gpustatsd",
		Short: "gpustatsd - GPU driver loading statistics daemon",
		Long: `gpustatsd aggregates GPU driver loading telemetry reported by the
driver loading notifier: per-driver-version success/failure counters and
per-app loading time samples.

It serves a local HTTP API for event ingest and diagnostic dumps, exposes
Prometheus metrics, and periodically pulls accumulated global statistics
for upstream reporting.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDumpCommand())

	return rootCmd
}
