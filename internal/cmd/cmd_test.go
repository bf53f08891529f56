package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/benchrun/internal/project"
)

const testManifest = `{
  "version": 1,
  "name": "sweep",
  "test_factors": ["nnodes"],
  "test_cases": [
    {"test_vector": {"nnodes": 1}, "path": "n1"},
    {"test_vector": {"nnodes": 2}, "path": "n2"}
  ]
}`

const testSpec = `{
  "cmd": ["./app"],
  "run": {"nprocs": 4}
}`

// writeProject lays out a runnable two-case project fixture.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, project.ManifestName), []byte(testManifest), 0o644))
	for _, rel := range []string{"n1", "n2"} {
		dir := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, project.CaseSpecName), []byte(testSpec), 0o644))
	}
	return root
}

// execute runs the root command with args and returns its combined output.
func execute(args ...string) (string, error) {
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "validate")
}

func TestValidateCommand(t *testing.T) {
	root := writeProject(t)
	out, err := execute("validate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Project sweep: 2 cases")
}

func TestValidateCommandMissingCaseSpec(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "n2", project.CaseSpecName)))

	_, err := execute("validate", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n2")
}

func TestValidateCommandMissingProject(t *testing.T) {
	_, err := execute("validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), project.ManifestName)
}

func TestRunCommandDryRun(t *testing.T) {
	root := writeProject(t)

	out, err := execute("run", "--dryrun", "--launcher", "mpirun", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Start project sweep:")
	assert.Contains(t, out, "Run n1 ... dryrun")
	assert.Contains(t, out, "Run n2 ... dryrun")
	assert.Contains(t, out, "Done.")
	// A dry pass leaves no stats behind.
	assert.NoFileExists(t, filepath.Join(root, project.StatsName))
}

func TestRunCommandDryRunMakeScript(t *testing.T) {
	root := writeProject(t)

	_, err := execute("run", "--dryrun", "--make-script", "--launcher", "mpirun", root)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "n1", "run.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mpirun -np 4 ./app")
}

func TestRunCommandRejectsUnknownLauncher(t *testing.T) {
	root := writeProject(t)
	_, err := execute("run", "--launcher", "lsf", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid launcher")
}

func TestRunCommandExcludeFilter(t *testing.T) {
	root := writeProject(t)

	out, err := execute("run", "--dryrun", "--launcher", "mpirun", "-e", "n2", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Run n2 ... skipped since excluded")
}

func TestRunCommandConfigFile(t *testing.T) {
	root := writeProject(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("launcher: mpirun\nmake_script: true\n"), 0o644))

	_, err := execute("run", "--dryrun", "--config", configPath, root)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "n1", "run.sh"))
}

func TestRunCommandFlagOverridesConfig(t *testing.T) {
	root := writeProject(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("launcher: lsf\n"), 0o644))

	// The config file names a bogus launcher, but an explicit flag wins.
	_, err := execute("run", "--dryrun", "--config", configPath, "--launcher", "mpirun", root)
	require.NoError(t, err)
}

func TestRunCommandRequiresProjectRoot(t *testing.T) {
	_, err := execute("run")
	require.Error(t, err)
}
