package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for benchrun
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchrun",
		Short: "Benchmark test project runner",
		Long: `Benchrun executes structured benchmark test projects on HPC systems.

A test project is a directory tree described by a TestProject.json manifest,
with one TestCase.json specification per case. Benchrun walks the cases in
order, dispatches each one through a job launcher (mpirun, Slurm, PBS, Yhrun
or Bsub), and persists the per-case outcomes to run_stats.json so interrupted
sweeps can resume where they left off.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
