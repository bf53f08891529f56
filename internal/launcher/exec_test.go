package launcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInteractiveExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Status
	}{
		{"zero is success", []string{"sh", "-c", "exit 0"}, StatusSuccess},
		{"124 is timeout", []string{"sh", "-c", "exit 124"}, StatusTimeout},
		{"one is failed", []string{"sh", "-c", "exit 1"}, StatusFailed},
		{"42 is failed", []string{"sh", "-c", "exit 42"}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			status, err := runInteractive(dir, tt.argv, os.Environ(), false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestRunInteractiveRedirectsOutput(t *testing.T) {
	dir := t.TempDir()
	argv := []string{"sh", "-c", "echo out; echo err 1>&2"}

	status, err := runInteractive(dir, argv, os.Environ(), false)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)

	out, err := os.ReadFile(filepath.Join(dir, stdoutName))
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(out))

	errOut, err := os.ReadFile(filepath.Join(dir, stderrName))
	require.NoError(t, err)
	assert.Equal(t, "err\n", string(errOut))
}

func TestRunInteractiveVerboseMergesStreams(t *testing.T) {
	dir := t.TempDir()
	argv := []string{"sh", "-c", "echo out; echo err 1>&2"}

	status, err := runInteractive(dir, argv, os.Environ(), true)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)

	out, err := os.ReadFile(filepath.Join(dir, stdoutName))
	require.NoError(t, err)
	assert.Contains(t, string(out), "out\n")
	assert.Contains(t, string(out), "err\n")

	// Verbose mode folds stderr into STDOUT; no STDERR file is written.
	_, err = os.Stat(filepath.Join(dir, stderrName))
	assert.True(t, os.IsNotExist(err))
}

func TestRunInteractivePassesEnvironment(t *testing.T) {
	dir := t.TempDir()
	argv := []string{"sh", "-c", `printf %s "$BENCH_MARKER"`}

	env := append(os.Environ(), "BENCH_MARKER=v1")
	status, err := runInteractive(dir, argv, env, false)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)

	out, err := os.ReadFile(filepath.Join(dir, stdoutName))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(out))
}

func TestRunInteractiveMissingBinary(t *testing.T) {
	dir := t.TempDir()
	_, err := runInteractive(dir, []string{"definitely-not-a-binary-xyz"}, os.Environ(), false)
	assert.Error(t, err)
}

func TestSubmitReturnsExitCode(t *testing.T) {
	dir := t.TempDir()

	code, err := submit(dir, []string{"sh", "-c", "exit 0"}, os.Environ())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = submit(dir, []string{"sh", "-c", "exit 7"}, os.Environ())
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestHasProgram(t *testing.T) {
	orig := lookPath
	defer func() { lookPath = orig }()

	lookPath = func(name string) (string, error) {
		if name == "present" {
			return "/usr/bin/present", nil
		}
		return "", os.ErrNotExist
	}

	assert.True(t, hasProgram("present"))
	assert.True(t, hasProgram("absent", "present"))
	assert.False(t, hasProgram("absent"))
}
