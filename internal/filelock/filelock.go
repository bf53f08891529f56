// Package filelock provides the advisory project lock and atomic file writes
// used when persisting run results. The lock keeps two orchestration passes
// from interleaving writes against the same project root.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ProjectLock is an advisory flock held for the duration of a run.
type ProjectLock struct {
	flock *flock.Flock
	path  string
}

// NewProjectLock creates a lock backed by the given lock file path. The lock
// file is created on first acquisition and left in place afterwards.
func NewProjectLock(path string) *ProjectLock {
	return &ProjectLock{
		flock: flock.New(path),
		path:  path,
	}
}

// TryAcquire attempts to take the lock without blocking. It returns false
// when another process already holds it.
func (pl *ProjectLock) TryAcquire() (bool, error) {
	acquired, err := pl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", pl.path, err)
	}
	return acquired, nil
}

// Release drops the lock.
func (pl *ProjectLock) Release() error {
	if err := pl.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", pl.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (pl *ProjectLock) Path() string {
	return pl.path
}

// AtomicWrite writes data to path through a temp file plus rename so readers
// never observe a partial file. The temp file lives in the target directory,
// keeping the rename on one filesystem.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	tempFile = nil
	return nil
}
