package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Fixed output filenames inside each case directory.
const (
	stdoutName = "STDOUT"
	stderrName = "STDERR"
)

// exitCodeTimeout is what the coreutils timeout wrapper and the schedulers
// report when they kill a job at its time limit.
const exitCodeTimeout = 124

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// hasProgram reports whether any of the named binaries resolves on PATH.
func hasProgram(names ...string) bool {
	for _, n := range names {
		if _, err := lookPath(n); err == nil {
			return true
		}
	}
	return false
}

// runInteractive executes argv in dir with stdout and stderr redirected to
// the fixed STDOUT/STDERR files. With verbose set, output is additionally
// teed to the terminal with stderr folded into stdout. The exit code maps
// 0 to success, 124 to timeout and anything else to failed. Errors are
// reserved for runs that never started.
func runInteractive(dir string, argv, env []string, verbose bool) (Status, error) {
	outFile, err := os.Create(filepath.Join(dir, stdoutName))
	if err != nil {
		return StatusNone, fmt.Errorf("create %s: %w", stdoutName, err)
	}
	defer outFile.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	if verbose {
		tee := io.MultiWriter(outFile, os.Stdout)
		cmd.Stdout = tee
		cmd.Stderr = tee
	} else {
		errFile, err := os.Create(filepath.Join(dir, stderrName))
		if err != nil {
			return StatusNone, fmt.Errorf("create %s: %w", stderrName, err)
		}
		defer errFile.Close()
		cmd.Stdout = outFile
		cmd.Stderr = errFile
	}

	err = cmd.Run()
	if err == nil {
		return StatusSuccess, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == exitCodeTimeout {
			return StatusTimeout, nil
		}
		return StatusFailed, nil
	}
	return StatusNone, fmt.Errorf("run %s: %w", argv[0], err)
}

// submit executes a submission command in dir with stdio inherited, so the
// queue system's acknowledgment reaches the operator. It returns the
// command's exit code.
func submit(dir string, argv, env []string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("submit %s: %w", argv[0], err)
}
