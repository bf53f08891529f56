package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/config"
	"github.com/harrison/benchrun/internal/executor"
	"github.com/harrison/benchrun/internal/history"
	"github.com/harrison/benchrun/internal/launcher"
	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/reporter"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <project-root>",
		Short: "Run the cases of a test project",
		Long: `Run every case of a test project through a job launcher.

Cases run sequentially in manifest order. Each case's exit status is
classified as success, timeout or failed, and the per-case outcomes are
written to run_stats.json in the project root when the pass finishes.

Configuration is loaded from .benchrun/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Run everything with the first launcher found on this host
  benchrun run ./mytest

  # Resume an interrupted sweep, skipping cases that already succeeded
  benchrun run --skip-finished ./mytest

  # Retry only the cases whose result files are missing or incomplete
  benchrun run --rerun-failed ./mytest

  # Restrict the pass with path patterns (exclusion wins)
  benchrun run -i 'small/*' -e '*/n16' ./mytest

  # Generate job scripts without running anything
  benchrun run --dryrun --make-script --launcher slurm ./mytest

  # Bound each case to 30 minutes and pause 5s between jobs
  benchrun run -t 30 --sleep 5 ./mytest`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .benchrun/config.yaml)")
	cmd.Flags().Bool("skip-finished", false, "Skip already finished cases")
	cmd.Flags().Bool("rerun-failed", false, "Rerun failed jobs (using validator to determine)")
	cmd.Flags().StringArrayP("exclude", "e", nil, "Skip cases whose path matches the pattern (repeatable)")
	cmd.Flags().StringArrayP("include", "i", nil, "Run only cases whose path matches the pattern (repeatable)")
	cmd.Flags().String("launcher", "auto", "Job launcher (mpirun, yhrun, slurm, pbs, bsub or auto)")
	cmd.Flags().IntP("timeout", "t", 0, "Timeout for each case, in minutes (0 = unlimited)")
	cmd.Flags().Int("sleep", 0, "Sleep specified seconds between jobs")
	cmd.Flags().Bool("make-script", false, "Generate job script for each case")
	cmd.Flags().Bool("dryrun", false, "Don't actually run cases")
	cmd.Flags().Bool("verbose", false, "Be verbose (print job output currently)")
	cmd.Flags().Bool("no-history", false, "Disable the execution history database")

	// Per-backend option groups.
	launcher.RegisterFlags(cmd.Flags())

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	projectRoot := args[0]
	fs := cmd.Flags()

	configPath, _ := fs.GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Only explicitly given flags override the config file.
	cfg.MergeWithFlags(
		changedString(fs, "launcher"),
		changedInt(fs, "timeout"),
		changedInt(fs, "sleep"),
		changedBool(fs, "make-script"),
		changedBool(fs, "skip-finished"),
		changedBool(fs, "rerun-failed"),
		changedBool(fs, "verbose"),
	)
	if err := cfg.Validate(); err != nil {
		return err
	}

	exclude, _ := fs.GetStringArray("exclude")
	include, _ := fs.GetStringArray("include")
	dryRun, _ := fs.GetBool("dryrun")
	noHistory, _ := fs.GetBool("no-history")

	p, err := project.Load(projectRoot)
	if err != nil {
		return err
	}

	l, err := launcher.Select(cfg.Launcher, fs)
	if err != nil {
		return err
	}

	o := executor.New(l, reporter.NewConsole(cmd.OutOrStdout()))

	if cfg.History.Enabled && !noHistory && !dryRun {
		store, err := history.Open(filepath.Join(p.Root, cfg.History.DBPath))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: execution history disabled: %v\n", err)
		} else {
			defer store.Close()
			if _, err := store.StartRun(p.Name, p.Root, l.Name()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: execution history disabled: %v\n", err)
			} else {
				o.SetRecorder(store)
			}
		}
	}

	_, err = o.Run(p, executor.Options{
		Timeout:      cfg.Timeout,
		MakeScript:   cfg.MakeScript,
		DryRun:       dryRun,
		Verbose:      cfg.Verbose,
		Exclude:      exclude,
		Include:      include,
		SkipFinished: cfg.SkipFinished,
		RerunFailed:  cfg.RerunFailed,
		Sleep:        cfg.SleepDuration(),
		BaseEnv:      os.Environ(),
	})
	return err
}

func changedString(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetString(name)
	return &v
}

func changedInt(fs *pflag.FlagSet, name string) *int {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetInt(name)
	return &v
}

func changedBool(fs *pflag.FlagSet, name string) *bool {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetBool(name)
	return &v
}
