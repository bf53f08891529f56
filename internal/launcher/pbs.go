package launcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// PbsConfig holds the PBS backend's option group.
type PbsConfig struct {
	// Queue selects the job queue (#PBS -q).
	Queue string
	// Iface names the network interface handed to mpirun.
	Iface string
}

func registerPbsFlags(fs *pflag.FlagSet) {
	fs.String("pbs-queue", "", "Select job queue to use")
	fs.String("pbs-iface", "", "Network interface to use")
}

func pbsConfigFromFlags(fs *pflag.FlagSet) PbsConfig {
	queue, _ := fs.GetString("pbs-queue")
	iface, _ := fs.GetString("pbs-iface")
	return PbsConfig{Queue: queue, Iface: iface}
}

// Pbs launches cases on PBS clusters. There is no interactive path: every
// run generates a job_spec.pbs and submits it with qsub, so an accepted
// submission reports success.
type Pbs struct {
	cfg PbsConfig
}

// NewPbs returns a PBS launcher with the given options.
func NewPbs(cfg PbsConfig) *Pbs {
	return &Pbs{cfg: cfg}
}

// Name implements Launcher.
func (p *Pbs) Name() string { return "pbs" }

// Probe reports whether qstat is on PATH.
func (p *Pbs) Probe() bool {
	return hasProgram("qstat")
}

// buildJobScript renders the PBS job script for a case.
func (p *Pbs) buildJobScript(spec *project.CaseSpec, timeout int) (*script.Script, error) {
	run := spec.Run
	if run.Nnodes <= 0 {
		return nil, fmt.Errorf("pbs submission requires run.nnodes")
	}
	if run.ProcsPerNode <= 0 {
		return nil, fmt.Errorf("pbs submission requires run.procs_per_node")
	}

	job := script.New()
	job.AddDirective("#PBS -N " + filepath.Base(spec.Cmd[0]))
	job.AddDirective(fmt.Sprintf("#PBS -l nodes=%d:ppn=1", run.Nnodes))
	job.AddDirective("#PBS -j oe")
	job.AddDirective("#PBS -n")
	job.AddDirective("#PBS -V")
	job.AddDirective("#PBS -o " + stdoutName)
	if p.cfg.Queue != "" {
		job.AddDirective("#PBS -q " + p.cfg.Queue)
	}
	if timeout > 0 {
		job.AddDirective(fmt.Sprintf("#PBS -l walltime=%02d:%02d:00", timeout/60, timeout%60))
	}

	job.SetEnvs(scriptEnvs(spec.Envs))

	job.AddRawCommand("cd $PBS_O_WORKDIR")
	var mpirun strings.Builder
	fmt.Fprintf(&mpirun, "mpirun -np %d -ppn %d -machinefile $PBS_NODEFILE", run.Nprocs, run.ProcsPerNode)
	if p.cfg.Iface != "" {
		fmt.Fprintf(&mpirun, " -iface %s", p.cfg.Iface)
	}
	for _, arg := range spec.Cmd {
		fmt.Fprintf(&mpirun, " %q", arg)
	}
	job.AddRawCommand(mpirun.String())

	return job, nil
}

// Run implements Launcher.
func (p *Pbs) Run(c *project.Case, opts Options) (Status, error) {
	job, err := p.buildJobScript(c.Spec, opts.Timeout)
	if err != nil {
		return StatusNone, err
	}
	if err := job.WriteFile(filepath.Join(c.Dir, "job_spec.pbs")); err != nil {
		return StatusNone, err
	}

	qsub := []string{"qsub", "./job_spec.pbs"}
	if opts.MakeScript {
		sc := script.New()
		sc.AddCommand(qsub...)
		if err := sc.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, c.Spec.Envs.Environ())
	code, err := submit(c.Dir, qsub, env)
	if err != nil {
		return StatusNone, err
	}
	switch code {
	case 0:
		return StatusSuccess, nil
	case exitCodeTimeout:
		return StatusTimeout, nil
	default:
		return StatusFailed, nil
	}
}
