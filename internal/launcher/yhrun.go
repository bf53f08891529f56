package launcher

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// glexThreshold is the process count above which the v0/v1 network-stack
// workarounds kick in. The boundary is strictly greater-than.
const glexThreshold = 8192

// YhrunConfig holds the yhrun backend's option group.
type YhrunConfig struct {
	// Partition selects the job partition (-p).
	Partition string
	// ExcludedNodes excludes nodes from the allocation (-x).
	ExcludedNodes string
	// OnlyNodes restricts the allocation to the given nodes (-w).
	OnlyNodes string
	// UseBatch submits through yhbatch instead of running yhrun directly.
	UseBatch bool
	// FixGlex selects the GLEX environment workaround: none, v0, v1 or v2.
	FixGlex string
	// UseYhbcast stages mirror_files to node-local paths with yhbcast.
	// Implies batch submission.
	UseYhbcast bool
}

func registerYhrunFlags(fs *pflag.FlagSet) {
	fs.String("yhrun-partition", "", "Select job partition to use")
	fs.String("yhrun-x", "", "Exclude nodes from job allocation")
	fs.String("yhrun-w", "", "Use only selected nodes")
	fs.Bool("yhrun-yhbatch", false, "Use yhbatch instead of yhrun")
	fs.String("yhrun-fix-glex", "none", "Fix GLEX settings (none, v0, v1 or v2)")
	fs.Bool("yhrun-yhbcast", false, "Use yhbcast to prepare a node-local directory")
}

func yhrunConfigFromFlags(fs *pflag.FlagSet) YhrunConfig {
	partition, _ := fs.GetString("yhrun-partition")
	excluded, _ := fs.GetString("yhrun-x")
	only, _ := fs.GetString("yhrun-w")
	useBatch, _ := fs.GetBool("yhrun-yhbatch")
	fixGlex, _ := fs.GetString("yhrun-fix-glex")
	useYhbcast, _ := fs.GetBool("yhrun-yhbcast")
	return YhrunConfig{
		Partition:     partition,
		ExcludedNodes: excluded,
		OnlyNodes:     only,
		UseBatch:      useBatch,
		FixGlex:       fixGlex,
		UseYhbcast:    useYhbcast,
	}
}

// Yhrun launches cases on the Tianhe slurm variant. Interactive runs go
// through yhrun; batch submissions go through yhbatch with a generated
// batch_spec.sh.
type Yhrun struct {
	cfg YhrunConfig
}

// NewYhrun returns a yhrun launcher with the given options.
func NewYhrun(cfg YhrunConfig) *Yhrun {
	return &Yhrun{cfg: cfg}
}

// Name implements Launcher.
func (y *Yhrun) Name() string { return "yhrun" }

// Probe reports whether yhrun is on PATH.
func (y *Yhrun) Probe() bool {
	return hasProgram("yhrun")
}

// buildYhrunArgv renders the yhrun prefix from the case geometry. Placement
// flags (-p, -x, -w) conflict with yhbatch's own flags, so the batch
// rendering leaves them out instead of stripping tokens from a built list.
func (y *Yhrun) buildYhrunArgv(spec *project.CaseSpec, timeout int, placement bool) []string {
	run := spec.Run
	argv := []string{"yhrun"}
	if run.Nnodes > 0 {
		argv = append(argv, "-N", strconv.Itoa(run.Nnodes))
	}
	argv = append(argv, "-n", strconv.Itoa(run.Nprocs))
	if run.TasksPerProc > 0 {
		argv = append(argv, "-c", strconv.Itoa(run.TasksPerProc))
	}
	if timeout > 0 {
		argv = append(argv, "-t", strconv.Itoa(timeout))
	}
	if placement {
		if y.cfg.Partition != "" {
			argv = append(argv, "-p", y.cfg.Partition)
		}
		if y.cfg.ExcludedNodes != "" {
			argv = append(argv, "-x", y.cfg.ExcludedNodes)
		}
		if y.cfg.OnlyNodes != "" {
			argv = append(argv, "-w", y.cfg.OnlyNodes)
		}
	}
	argv = append(argv, "-o", stdoutName, "-e", stderrName)
	return argv
}

// glexEnvs returns the environment workaround for the configured fix
// version. v0 and v1 apply only above the process-count threshold; v2 keys
// on per-node process count and node count instead.
func (y *Yhrun) glexEnvs(run project.RunSpec) []script.EnvVar {
	switch y.cfg.FixGlex {
	case "v0":
		if run.Nprocs > glexThreshold {
			return []script.EnvVar{
				{Name: "PDP_GLEX_USE_HC_MPQ", Value: "1"},
				{Name: "PDP_GLEX_HC_MPQ_L1_CAPACITY", Value: "16384"},
				{Name: "GLEX_BYPASS_RDMA_WRITE_CHANNEL", Value: "1"},
				{Name: "GLEX_EP_MPQ_SLOTS", Value: "131072"},
				{Name: "GLEX_USE_ZC_RNDV", Value: "0"},
			}
		}
	case "v1":
		if run.Nprocs > glexThreshold {
			return []script.EnvVar{
				{Name: "MPICH_NO_LOCAL", Value: "1"},
				{Name: "GLEX_BYPASS_ER", Value: "1"},
				{Name: "GLEX_USE_ZC_RNDV", Value: "0"},
			}
		}
	case "v2":
		var envs []script.EnvVar
		ppn := run.ProcsPerNode
		if ppn == 0 {
			ppn = 1
		}
		if ppn > 32 {
			envs = append(envs, script.EnvVar{Name: "MPICH_NEMESIS_NETMOD", Value: "tcp"})
		}
		if run.Nnodes > 1 {
			envs = append(envs, script.EnvVar{Name: "MPICH_CH3_NO_LOCAL", Value: "1"})
		}
		return envs
	}
	return nil
}

// Run implements Launcher.
func (y *Yhrun) Run(c *project.Case, opts Options) (Status, error) {
	spec := c.Spec
	fixEnvs := y.glexEnvs(spec.Run)
	caseEnvs := append(scriptEnvs(spec.Envs), fixEnvs...)

	// yhbcast staging only works from a batch script.
	if y.cfg.UseBatch || y.cfg.UseYhbcast {
		return y.runBatch(c, caseEnvs, opts)
	}

	argv := append(y.buildYhrunArgv(spec, opts.Timeout, true), spec.Cmd...)

	if opts.MakeScript {
		s := script.New()
		s.SetEnvs(caseEnvs)
		s.AddCommand(argv...)
		if err := s.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, envStrings(caseEnvs))
	return runInteractive(c.Dir, argv, env, opts.Verbose)
}

// runBatch writes batch_spec.sh and submits it through yhbatch. Submission
// acceptance is reported as success; job completion is not tracked.
func (y *Yhrun) runBatch(c *project.Case, caseEnvs []script.EnvVar, opts Options) (Status, error) {
	spec := c.Spec
	if spec.Run.Nnodes <= 0 {
		return StatusNone, fmt.Errorf("yhbatch submission requires run.nnodes")
	}

	prefix := y.buildYhrunArgv(spec, opts.Timeout, false)
	mainCmd := append(append([]string{}, prefix...), spec.Cmd...)

	batch := script.New()
	batch.SetEnvs(caseEnvs)
	if y.cfg.UseYhbcast && len(spec.MirrorFiles) > 0 {
		var bcastCmds, cleanupCmds [][]string
		for _, mf := range spec.MirrorFiles {
			bcastCmds = append(bcastCmds, []string{"yhbcast", mf.Name, mf.Value})
			cleanup := append(append([]string{}, prefix...), "rm", "-f", mf.Value)
			cleanupCmds = append(cleanupCmds, cleanup)
		}
		// Scrub stale copies, stage, run, scrub again.
		for _, cmd := range cleanupCmds {
			batch.AddCommand(cmd...)
		}
		for _, cmd := range bcastCmds {
			batch.AddCommand(cmd...)
		}
		batch.AddCommand(mainCmd...)
		for _, cmd := range cleanupCmds {
			batch.AddCommand(cmd...)
		}
	} else {
		batch.AddCommand(mainCmd...)
	}
	if err := batch.WriteFile(filepath.Join(c.Dir, "batch_spec.sh")); err != nil {
		return StatusNone, err
	}

	yhbatch := []string{"yhbatch", "-N", strconv.Itoa(spec.Run.Nnodes)}
	if y.cfg.Partition != "" {
		yhbatch = append(yhbatch, "-p", y.cfg.Partition)
	}
	if y.cfg.ExcludedNodes != "" {
		yhbatch = append(yhbatch, "-x", y.cfg.ExcludedNodes)
	}
	if y.cfg.OnlyNodes != "" {
		yhbatch = append(yhbatch, "-w", y.cfg.OnlyNodes)
	}
	yhbatch = append(yhbatch, "-J", filepath.Base(spec.Cmd[0]), "./batch_spec.sh")

	if opts.MakeScript {
		s := script.New()
		s.AddCommand(yhbatch...)
		if err := s.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, envStrings(caseEnvs))
	if _, err := submit(c.Dir, yhbatch, env); err != nil {
		return StatusNone, err
	}
	return StatusSuccess, nil
}

// envStrings renders script exports as "K=V" pairs for exec.Cmd.Env.
func envStrings(envs []script.EnvVar) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Name + "=" + e.Value
	}
	return out
}
