// Package executor drives a full orchestration pass over a test project:
// case selection, launcher dispatch, progress reporting and run-stats
// persistence. Cases run strictly in manifest order, one at a time.
package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/benchrun/internal/filelock"
	"github.com/harrison/benchrun/internal/launcher"
	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/validator"
)

// LockName is the advisory lock file guarding a project root against
// concurrent passes.
const LockName = ".benchrun.lock"

// Reporter receives progress notifications during a pass. CaseBegin and
// CaseEnd bracket every case, including skipped ones.
type Reporter interface {
	ProjectBegin(p *project.Project)
	ProjectEnd(p *project.Project, stats *project.RunStats)
	CaseBegin(p *project.Project, c *project.Case)
	CaseEnd(p *project.Project, c *project.Case, outcome string)
}

// Recorder persists per-case execution records. Recording failures are
// reported as warnings and never abort the pass.
type Recorder interface {
	RecordExecution(c *project.Case, outcome string, elapsed time.Duration) error
}

// Options selects and shapes the cases of one pass.
type Options struct {
	// Timeout bounds each case's wall-clock execution, in minutes. Zero
	// disables the limit.
	Timeout int
	// MakeScript writes a reproduction script into every executed case
	// directory.
	MakeScript bool
	// DryRun generates artifacts but executes nothing, and leaves the
	// persisted stats untouched.
	DryRun bool
	// Verbose tees job output to the terminal.
	Verbose bool
	// Exclude skips cases whose relative path matches any pattern.
	// Exclusion wins over inclusion.
	Exclude []string
	// Include, when non-empty, restricts the pass to matching cases.
	Include []string
	// SkipFinished skips cases recorded as successful by the previous pass.
	SkipFinished bool
	// RerunFailed skips cases whose validator reports them complete, so a
	// repeated pass retries only the broken ones.
	RerunFailed bool
	// Sleep pauses between executed cases, giving shared job systems room
	// to settle.
	Sleep time.Duration
	// BaseEnv is the environment snapshot handed to the launcher.
	BaseEnv []string
}

// Orchestrator runs passes over a project with a fixed launcher.
type Orchestrator struct {
	launcher launcher.Launcher
	reporter Reporter
	recorder Recorder
}

// New creates an orchestrator. The reporter is required; a nil recorder
// disables execution history.
func New(l launcher.Launcher, r Reporter) *Orchestrator {
	if l == nil {
		panic("launcher cannot be nil")
	}
	if r == nil {
		panic("reporter cannot be nil")
	}
	return &Orchestrator{launcher: l, reporter: r}
}

// SetRecorder attaches an execution history sink.
func (o *Orchestrator) SetRecorder(rec Recorder) {
	o.recorder = rec
}

// Run executes one pass and returns the resulting stats. It holds the
// project lock for the whole pass and persists run_stats.json at the end
// unless the pass was a dry run. A launcher error aborts the pass.
func (o *Orchestrator) Run(p *project.Project, opts Options) (*project.RunStats, error) {
	lock := filelock.NewProjectLock(filepath.Join(p.Root, LockName))
	acquired, err := lock.TryAcquire()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("project %s is locked by another run, remove %s if this is stale", p.Root, lock.Path())
	}
	defer lock.Release()

	stats := project.NewRunStats()
	if opts.SkipFinished && p.LastStats != nil {
		stats.Success = append(stats.Success, p.LastStats.Success...)
	}

	o.reporter.ProjectBegin(p)
	err = p.EachCase(func(c *project.Case) error {
		return o.runCase(p, c, opts, stats)
	})
	if err != nil {
		return stats, err
	}
	o.reporter.ProjectEnd(p, stats)

	if !opts.DryRun {
		if err := project.SaveStats(p.Root, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// runCase applies the selection policy to one case and executes it when
// selected. Policy order: exclusion, inclusion, rerun-failed validation,
// skip-finished.
func (o *Orchestrator) runCase(p *project.Project, c *project.Case, opts Options, stats *project.RunStats) error {
	ref := c.Ref()

	if len(opts.Exclude) > 0 && matchAny(c.RelPath, opts.Exclude) {
		stats.Add(project.BucketSkipped, ref)
		o.reportSkip(p, c, "skipped since excluded")
		return nil
	}
	if len(opts.Include) > 0 && !matchAny(c.RelPath, opts.Include) {
		stats.Add(project.BucketSkipped, ref)
		o.reportSkip(p, c, "skipped since not included")
		return nil
	}
	if opts.RerunFailed && validator.Valid(c) {
		o.reportSkip(p, c, "skipped since done")
		return nil
	}
	if opts.SkipFinished && stats.InSuccess(ref) {
		o.reportSkip(p, c, "skipped since in success")
		return nil
	}

	o.reporter.CaseBegin(p, c)
	start := time.Now()
	status, err := o.launcher.Run(c, launcher.Options{
		Timeout:    opts.Timeout,
		MakeScript: opts.MakeScript,
		DryRun:     opts.DryRun,
		Verbose:    opts.Verbose,
		BaseEnv:    opts.BaseEnv,
	})
	elapsed := time.Since(start)
	if err != nil {
		o.reporter.CaseEnd(p, c, "error")
		return fmt.Errorf("run case %s: %w", c.RelPath, err)
	}

	outcome := string(status)
	if opts.DryRun {
		o.reporter.CaseEnd(p, c, "dryrun")
	} else {
		o.reporter.CaseEnd(p, c, outcome)
	}
	if status != launcher.StatusNone {
		if err := stats.Add(outcome, ref); err != nil {
			return err
		}
	}

	if o.recorder != nil && !opts.DryRun {
		if err := o.recorder.RecordExecution(c, outcome, elapsed); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record execution for %s: %v\n", c.RelPath, err)
		}
	}

	if opts.Sleep > 0 {
		time.Sleep(opts.Sleep)
	}
	return nil
}

func (o *Orchestrator) reportSkip(p *project.Project, c *project.Case, outcome string) {
	o.reporter.CaseBegin(p, c)
	o.reporter.CaseEnd(p, c, outcome)
}
