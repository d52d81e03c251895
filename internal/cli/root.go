// Package cli wires the stagecraft commands.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion records the build-time version string.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "stagecraft",
	Short: "stagecraft — a multi-agent pipeline orchestrator",
	Long: `stagecraft drives a staged software-development pipeline in which each
stage's work is produced by independently-invoked agents: multi-round
debates with contention scoring for design stages, ordered steps for
implementation stages, validation and a bounded retry ladder in between.

Project state lives under <project>/.stagecraft/ (JSON state, per-round
artifacts, checkpoints); the execution event log is SQLite.`,

	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a pipeline config file (default ./stagecraft.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(complianceCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}
