package launcher

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/harrison/benchrun/internal/project"
	"github.com/harrison/benchrun/internal/script"
)

// SlurmConfig holds the slurm backend's option group.
type SlurmConfig struct {
	// Partition selects the job partition (-p).
	Partition string
	// UseBatch submits through sbatch with a generated job_spec.sh instead
	// of running srun directly.
	UseBatch bool
	// MPI names the MPI vendor whose mpirun convention the batch script
	// uses: openmpi, mpich, mvapich2 or intelmpi.
	MPI string
}

func registerSlurmFlags(fs *pflag.FlagSet) {
	fs.String("slurm-partition", "", "Select job partition to use")
	fs.Bool("slurm-sbatch", false, "Use sbatch instead of srun")
	fs.String("slurm-mpi", "openmpi", "Select the MPI to use (openmpi, mpich, mvapich2 or intelmpi)")
}

func slurmConfigFromFlags(fs *pflag.FlagSet) SlurmConfig {
	partition, _ := fs.GetString("slurm-partition")
	useBatch, _ := fs.GetBool("slurm-sbatch")
	mpi, _ := fs.GetString("slurm-mpi")
	return SlurmConfig{Partition: partition, UseBatch: useBatch, MPI: mpi}
}

// Slurm launches cases on generic slurm clusters, interactively through
// srun or batched through sbatch.
type Slurm struct {
	cfg SlurmConfig

	// hostfileSuffix makes the temp hostfile name unique per launcher.
	// Overridable in tests for stable script content.
	hostfileSuffix string
}

// NewSlurm returns a slurm launcher with the given options.
func NewSlurm(cfg SlurmConfig) *Slurm {
	return &Slurm{cfg: cfg, hostfileSuffix: uuid.NewString()}
}

// Name implements Launcher.
func (s *Slurm) Name() string { return "slurm" }

// Probe reports whether sbatch is on PATH.
func (s *Slurm) Probe() bool {
	return hasProgram("sbatch")
}

// buildSrunArgv renders the srun prefix from the case geometry.
func (s *Slurm) buildSrunArgv(spec *project.CaseSpec, timeout int) []string {
	run := spec.Run
	argv := []string{"srun"}
	if run.Nnodes > 0 {
		argv = append(argv, "-N", strconv.Itoa(run.Nnodes))
	}
	argv = append(argv, "-n", strconv.Itoa(run.Nprocs))
	if run.ProcsPerNode > 0 {
		argv = append(argv, "--ntasks-per-node", strconv.Itoa(run.ProcsPerNode))
	}
	if run.TasksPerProc > 0 {
		argv = append(argv, "-c", strconv.Itoa(run.TasksPerProc))
	}
	if timeout > 0 {
		argv = append(argv, "-t", strconv.Itoa(timeout))
	}
	if s.cfg.Partition != "" {
		argv = append(argv, "-p", s.cfg.Partition)
	}
	return argv
}

// Run implements Launcher.
func (s *Slurm) Run(c *project.Case, opts Options) (Status, error) {
	if s.cfg.UseBatch {
		return s.runBatch(c, opts)
	}

	argv := append(s.buildSrunArgv(c.Spec, opts.Timeout), c.Spec.Cmd...)

	if opts.MakeScript {
		sc := script.New()
		sc.SetEnvs(scriptEnvs(c.Spec.Envs))
		sc.AddCommand(argv...)
		if err := sc.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, c.Spec.Envs.Environ())
	return runInteractive(c.Dir, argv, env, opts.Verbose)
}

// runBatch writes job_spec.sh and submits it through sbatch. The script
// discovers the allocated hosts with srun, runs the vendor mpirun against
// the discovered hostfile and cleans the hostfile up afterwards.
// Submission acceptance is reported as success.
func (s *Slurm) runBatch(c *project.Case, opts Options) (Status, error) {
	spec := c.Spec
	run := spec.Run

	job := script.New()
	job.AddDirective("#SBATCH -J " + filepath.Base(spec.Cmd[0]))
	if run.Nnodes > 0 {
		job.AddDirective("#SBATCH -N " + strconv.Itoa(run.Nnodes))
	}
	job.AddDirective("#SBATCH -n " + strconv.Itoa(run.Nprocs))
	if run.ProcsPerNode > 0 {
		job.AddDirective("#SBATCH --ntasks-per-node " + strconv.Itoa(run.ProcsPerNode))
	}
	if run.TasksPerProc > 0 {
		job.AddDirective("#SBATCH -c " + strconv.Itoa(run.TasksPerProc))
	}
	if opts.Timeout > 0 {
		job.AddDirective("#SBATCH -t " + strconv.Itoa(opts.Timeout))
	}
	if s.cfg.Partition != "" {
		job.AddDirective("#SBATCH -p " + s.cfg.Partition)
	}
	job.AddDirective("#SBATCH -o " + stdoutName)
	job.AddDirective("#SBATCH -e " + stderrName)

	hostfile := "/tmp/hostfile-" + s.hostfileSuffix
	srunArgv := s.buildSrunArgv(spec, opts.Timeout)
	job.AddRawCommand(strings.Join(srunArgv, " ") + " hostname > " + hostfile)

	mpiCmd, mpiEnvs, err := buildMPICommand(s.cfg.MPI, run.Nprocs, 1, hostfile, opts.Timeout)
	if err != nil {
		return StatusNone, err
	}
	job.AddCommand(append(mpiCmd, spec.Cmd...)...)
	job.AddCommand("rm", "-f", hostfile)

	job.SetEnvs(scriptEnvs(spec.Envs))
	job.SetEnvs(mpiEnvs)

	if err := job.WriteFile(filepath.Join(c.Dir, "job_spec.sh")); err != nil {
		return StatusNone, err
	}

	sbatch := []string{"sbatch", "job_spec.sh"}
	if opts.MakeScript {
		sc := script.New()
		sc.AddCommand(sbatch...)
		if err := sc.WriteFile(filepath.Join(c.Dir, "run.sh")); err != nil {
			return StatusNone, err
		}
	}
	if opts.DryRun {
		return StatusNone, nil
	}

	env := mergeEnv(opts.BaseEnv, spec.Envs.Environ())
	if _, err := submit(c.Dir, sbatch, env); err != nil {
		return StatusNone, err
	}
	return StatusSuccess, nil
}
