// Package launcher adapts test cases to the job-control systems they run
// under. Each backend turns one case specification into an external command
// or a generated job script and executes or submits it. Backends share a
// capability set: probe the host for the backend's binary, declare a
// namespaced option group, and run a single case.
package launcher

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// Status is the outcome of running one case.
type Status string

const (
	// StatusSuccess means exit code 0, or an accepted batch submission.
	StatusSuccess Status = "success"
	// StatusTimeout means the external time limiter killed the job (exit 124).
	StatusTimeout Status = "timeout"
	// StatusFailed covers every other exit code.
	StatusFailed Status = "failed"
	// StatusNone is returned under dry-run only; no side effects besides
	// script generation have happened.
	StatusNone Status = "none"
)

// Options carries the per-run knobs shared by every backend.
type Options struct {
	// Timeout bounds wall-clock execution, in minutes. Zero disables it.
	Timeout int
	// MakeScript writes a run.sh reproducing the exact submission into the
	// case directory.
	MakeScript bool
	// DryRun short-circuits execution after artifact generation.
	DryRun bool
	// Verbose tees job output to the terminal in addition to the STDOUT
	// and STDERR files.
	Verbose bool
	// BaseEnv is an immutable snapshot of the base environment, "K=V"
	// form. Backends append case and fix variables to a copy; the process
	// environment is never mutated.
	BaseEnv []string
}

// Launcher is implemented once per job-control backend.
type Launcher interface {
	// Name returns the backend name used for flag namespacing and
	// selection.
	Name() string
	// Probe reports whether the backend's submission binary is present on
	// this host.
	Probe() bool
	// Run executes or submits one case and returns its outcome. A non-nil
	// error means the run could not be carried out at all (I/O failure,
	// missing binary, invalid geometry) and is fatal to the pass.
	Run(c *project.Case, opts Options) (Status, error)
}

// autoOrder is the probe order for --launcher auto. The first available
// backend wins.
var autoOrder = []string{"yhrun", "bsub", "slurm", "pbs", "mpirun"}

// RegisterFlags adds every backend's option group to fs. Each flag is
// prefixed with its backend name so groups cannot collide.
func RegisterFlags(fs *pflag.FlagSet) {
	registerMpirunFlags(fs)
	registerYhrunFlags(fs)
	registerSlurmFlags(fs)
	registerPbsFlags(fs)
	registerBsubFlags(fs)
}

// fromFlags builds the named backend from its parsed option group.
func fromFlags(name string, fs *pflag.FlagSet) (Launcher, error) {
	switch name {
	case "mpirun":
		return NewMpirun(mpirunConfigFromFlags(fs)), nil
	case "yhrun":
		return NewYhrun(yhrunConfigFromFlags(fs)), nil
	case "slurm":
		return NewSlurm(slurmConfigFromFlags(fs)), nil
	case "pbs":
		return NewPbs(pbsConfigFromFlags(fs)), nil
	case "bsub":
		return NewBsub(bsubConfigFromFlags(fs)), nil
	default:
		return nil, fmt.Errorf("unknown launcher %q", name)
	}
}

// Select returns the launcher for name, configured from the parsed flags.
// For "auto" it probes the fixed priority order and picks the first backend
// whose binary is present; finding none is a configuration error.
func Select(name string, fs *pflag.FlagSet) (Launcher, error) {
	if name != "auto" {
		return fromFlags(name, fs)
	}
	for _, candidate := range autoOrder {
		l, err := fromFlags(candidate, fs)
		if err != nil {
			return nil, err
		}
		if l.Probe() {
			return l, nil
		}
	}
	return nil, fmt.Errorf("no job launcher available on this host, select one explicitly with --launcher")
}

// scriptEnvs converts a case env mapping into script exports.
func scriptEnvs(m project.EnvMap) []script.EnvVar {
	out := make([]script.EnvVar, len(m))
	for i, e := range m {
		out[i] = script.EnvVar{Name: e.Name, Value: e.Value}
	}
	return out
}

// mergeEnv copies base and appends extra pairs. Later entries win when the
// command starts.
func mergeEnv(base []string, extra ...[]string) []string {
	merged := make([]string, 0, len(base))
	merged = append(merged, base...)
	for _, e := range extra {
		merged = append(merged, e...)
	}
	return merged
}
