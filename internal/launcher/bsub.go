package launcher

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// BsubConfig holds the bsub backend's option group.
type BsubConfig struct {
	// Queue selects the job queue (-q).
	Queue string
	// LargeSeg enables large segment support (-b).
	LargeSeg bool
	// Cgsp is the number of slave cores per core group (-cgsp).
	Cgsp string
	// ShareSize is the share region size (-share_size).
	ShareSize string
	// HostStack is the host stack size (-host_stack).
	HostStack string
}

func registerBsubFlags(fs *pflag.FlagSet) {
	fs.String("bsub-queue", "", "Select job queue to use")
	fs.Bool("bsub-b", false, "Use large segment support")
	fs.String("bsub-cgsp", "", "Number of slave cores per core group")
	fs.String("bsub-share-size", "", "Share region size")
	fs.String("bsub-host-stack", "", "Host stack size")
}

func bsubConfigFromFlags(fs *pflag.FlagSet) BsubConfig {
	queue, _ := fs.GetString("bsub-queue")
	largeSeg, _ := fs.GetBool("bsub-b")
	cgsp, _ := fs.GetString("bsub-cgsp")
	shareSize, _ := fs.GetString("bsub-share-size")
	hostStack, _ := fs.GetString("bsub-host-stack")
	return BsubConfig{
		Queue:     queue,
		LargeSeg:  largeSeg,
		Cgsp:      cgsp,
		ShareSize: shareSize,
		HostStack: hostStack,
	}
}

// Bsub launches cases on the Sunway batch system. Submission uses bsub -I,
// which blocks until the job completes, so the normal exit-code mapping
// applies.
type Bsub struct {
	cfg BsubConfig
}

// NewBsub returns a bsub launcher with the given options.
func NewBsub(cfg BsubConfig) *Bsub {
	return &Bsub{cfg: cfg}
}

// Name implements Launcher.
func (b *Bsub) Name() string { return "bsub" }

// Probe reports whether bsub is on PATH.
func (b *Bsub) Probe() bool {
	return hasProgram("bsub")
}

// buildCommand renders the blocking bsub invocation. bsub has no native
// per-job walltime flag here, so the timeout option is not enforced on this
// backend.
func (b *Bsub) buildCommand(spec *project.CaseSpec) []string {
	argv := []string{"bsub", "-I", "-n", strconv.Itoa(spec.Run.Nprocs)}
	if spec.Run.ProcsPerNode > 0 {
		argv = append(argv, "-np", strconv.Itoa(spec.Run.ProcsPerNode))
	}
	if b.cfg.LargeSeg {
		argv = append(argv, "-b")
	}
	if b.cfg.Queue != "" {
		argv = append(argv, "-q", b.cfg.Queue)
	}
	if b.cfg.Cgsp != "" {
		argv = append(argv, "-cgsp", b.cfg.Cgsp)
	}
	if b.cfg.ShareSize != "" {
		argv = append(argv, "-share_size", b.cfg.ShareSize)
	}
	if b.cfg.HostStack != "" {
		argv = append(argv, "-host_stack", b.cfg.HostStack)
	}
	return append(argv, spec.Cmd...)
}

// Run implements Launcher.
func (b *Bsub) Run(c *project.Case, opts Options) (Status, error) {
	argv := b.buildCommand(c.Spec)

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
