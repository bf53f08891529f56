package launcher

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/benchrun/internal/project"
)

// newFlagSet returns a flag set with every backend group registered and the
// given flags set.
func newFlagSet(t *testing.T, flags map[string]string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	for name, value := range flags {
		require.NoError(t, fs.Set(name, value))
	}
	return fs
}

// newCase builds a case rooted in a temp directory.
func newCase(t *testing.T, spec *project.CaseSpec) *project.Case {
	t.Helper()
	return &project.Case{
		TestVector: project.TestVector{"serial": "0"},
		RelPath:    "case-0",
		Dir:        t.TempDir(),
		Spec:       spec,
	}
}

// stubPath fakes binary availability for the duration of a test.
func stubPath(t *testing.T, available ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", os.ErrNotExist
	}
}

func TestSelectByName(t *testing.T) {
	fs := newFlagSet(t, nil)
	tests := []struct {
		name string
		want string
	}{
		{"mpirun", "mpirun"},
		{"yhrun", "yhrun"},
		{"slurm", "slurm"},
		{"pbs", "pbs"},
		{"bsub", "bsub"},
	}
	for _, tt := range tests {
		l, err := Select(tt.name, fs)
		require.NoError(t, err)
		assert.Equal(t, tt.want, l.Name())
	}
}

func TestSelectUnknownName(t *testing.T) {
	fs := newFlagSet(t, nil)
	_, err := Select("lsf", fs)
	assert.Error(t, err)
}

func TestSelectAutoPriorityOrder(t *testing.T) {
	fs := newFlagSet(t, nil)

	// yhrun outranks everything else when present.
	stubPath(t, "yhrun", "sbatch", "mpirun")
	l, err := Select("auto", fs)
	require.NoError(t, err)
	assert.Equal(t, "yhrun", l.Name())

	// Without yhrun and bsub, slurm wins over pbs and mpirun.
	stubPath(t, "sbatch", "qstat", "mpirun")
	l, err = Select("auto", fs)
	require.NoError(t, err)
	assert.Equal(t, "slurm", l.Name())

	// mpirun is the last resort.
	stubPath(t, "mpiexec")
	l, err = Select("auto", fs)
	require.NoError(t, err)
	assert.Equal(t, "mpirun", l.Name())
}

func TestSelectAutoNoneAvailable(t *testing.T) {
	fs := newFlagSet(t, nil)
	stubPath(t) // nothing on PATH
	_, err := Select("auto", fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--launcher")
}

func TestBackendFlagGroupsAreNamespaced(t *testing.T) {
	fs := newFlagSet(t, map[string]string{
		"mpirun-hosts":    "n0,n1",
		"yhrun-partition": "work",
		"slurm-partition": "batch",
		"pbs-queue":       "fast",
		"bsub-queue":      "q1",
	})

	assert.Equal(t, MpirunConfig{Hosts: "n0,n1"}, mpirunConfigFromFlags(fs))
	assert.Equal(t, "work", yhrunConfigFromFlags(fs).Partition)
	assert.Equal(t, "batch", slurmConfigFromFlags(fs).Partition)
	assert.Equal(t, "fast", pbsConfigFromFlags(fs).Queue)
	assert.Equal(t, "q1", bsubConfigFromFlags(fs).Queue)
}

func TestSlurmMPIDefault(t *testing.T) {
	fs := newFlagSet(t, nil)
	assert.Equal(t, "openmpi", slurmConfigFromFlags(fs).MPI)
}

func TestYhrunFixGlexDefault(t *testing.T) {
	fs := newFlagSet(t, nil)
	assert.Equal(t, "none", yhrunConfigFromFlags(fs).FixGlex)
}
