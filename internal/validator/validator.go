// Package validator decides whether a case's output already satisfies its
// declared success predicate. The orchestrator uses it for rerun-failed
// passes, where only cases that do not validate are executed again.
package validator

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/harrison/benchrun/internal/project"
)

// Valid reports whether the case's output satisfies its validator spec.
// A case without a validator is unconditionally valid. Every path under
// `exists` must exist relative to the case directory; every `contains`
// entry requires the file to exist and its content to match the pattern as
// a substring search. Unreadable files and malformed patterns count as not
// valid.
func Valid(c *project.Case) bool {
	v := c.Spec.Validator
	if v == nil {
		return true
	}

	for _, rel := range v.Exists {
		if _, err := os.Stat(filepath.Join(c.Dir, rel)); err != nil {
			return false
		}
	}

	for rel, pattern := range v.Contains {
		data, err := os.ReadFile(filepath.Join(c.Dir, rel))
		if err != nil {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		if !re.Match(data) {
			return false
		}
	}

	return true
}
