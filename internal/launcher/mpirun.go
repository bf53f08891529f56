package launcher

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// MpirunConfig holds the mpirun backend's option group.
type MpirunConfig struct {
	// Hosts is a comma separated host list passed as -hosts.
	Hosts string
	// PPN is the processes-per-node count passed as -ppn.
	PPN string
}

func registerMpirunFlags(fs *pflag.FlagSet) {
	fs.String("mpirun-hosts", "", "Comma separated host list")
	fs.String("mpirun-ppn", "", "Processes per node")
}

func mpirunConfigFromFlags(fs *pflag.FlagSet) MpirunConfig {
	hosts, _ := fs.GetString("mpirun-hosts")
	ppn, _ := fs.GetString("mpirun-ppn")
	return MpirunConfig{Hosts: hosts, PPN: ppn}
}

// Mpirun launches cases with plain mpirun, the direct MPI backend.
type Mpirun struct {
	cfg MpirunConfig
}

// NewMpirun returns an mpirun launcher with the given options.
func NewMpirun(cfg MpirunConfig) *Mpirun {
	return &Mpirun{cfg: cfg}
}

// Name implements Launcher.
func (m *Mpirun) Name() string { return "mpirun" }

// Probe reports whether mpirun or mpiexec is on PATH.
func (m *Mpirun) Probe() bool {
	return hasProgram("mpirun", "mpiexec")
}

// buildCommand renders the full command line, wrapping with the external
// timeout utility when a limit is set.
func (m *Mpirun) buildCommand(spec *project.CaseSpec, timeout int) []string {
	argv := []string{"mpirun", "-np", strconv.Itoa(spec.Run.Nprocs)}
	if m.cfg.Hosts != "" {
		argv = append(argv, "-hosts", m.cfg.Hosts)
	}
	if m.cfg.PPN != "" {
		argv = append(argv, "-ppn", m.cfg.PPN)
	}
	argv = append(argv, spec.Cmd...)
	if timeout > 0 {
		argv = append([]string{"timeout", fmt.Sprintf("%dm", timeout)}, argv...)
	}
	return argv
}

// Run implements Launcher.
func (m *Mpirun) Run(c *project.Case, opts Options) (Status, error) {
	argv := m.buildCommand(c.Spec, opts.Timeout)

	if opts.MakeScript {
		s := script.New()
		s.SetEnvs(scriptEnvs(c.Spec.Envs))
		s.AddCommand(argv...)
		if err := s.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, c.Spec.Envs.Environ())
	return runInteractive(c.Dir, argv, env, opts.Verbose)
}
