// Package script assembles bash job scripts from ordered directive lines,
// environment exports and command lines. It is shared by every launcher
// backend that writes a script artifact, so quoting and layout stay uniform
// across schedulers.
package script

import (
	"fmt"
	"os"
	"strings"
)

// EnvVar is a single environment export. Scripts keep exports in insertion
// order so generated files are stable across runs.
type EnvVar struct {
	Name  string
	Value string
}

type scriptLine struct {
	argv []string
	raw  string
}

// Script is a bash script under construction. Directives are raw header
// lines (for example "#SBATCH -n 64" or "#PBS -q batch") emitted before any
// export or command.
type Script struct {
	directives []string
	envs       []EnvVar
	lines      []scriptLine
}

// New returns an empty script.
func New() *Script {
	return &Script{}
}

// AddDirective appends a raw header line, typically a scheduler directive.
func (s *Script) AddDirective(line string) {
	s.directives = append(s.directives, line)
}

// SetEnv appends an environment export. Re-setting a name appends a second
// export; the later one wins at execution time.
func (s *Script) SetEnv(name, value string) {
	s.envs = append(s.envs, EnvVar{Name: name, Value: value})
}

// SetEnvs appends all given exports in order.
func (s *Script) SetEnvs(envs []EnvVar) {
	s.envs = append(s.envs, envs...)
}

// AddCommand appends a command line. Each argument is quoted individually
// when rendered.
func (s *Script) AddCommand(argv ...string) {
	s.lines = append(s.lines, scriptLine{argv: argv})
}

// AddRawCommand appends a command line emitted verbatim, without
// per-argument quoting. Used for lines that carry shell syntax such as
// redirections.
func (s *Script) AddRawCommand(line string) {
	s.lines = append(s.lines, scriptLine{raw: line})
}

// Render returns the script text.
func (s *Script) Render() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("#\n")
	for _, d := range s.directives {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if len(s.envs) > 0 {
		for _, e := range s.envs {
			fmt.Fprintf(&b, "export %s=%s\n", e.Name, Quote(e.Value))
		}
		b.WriteByte('\n')
	}
	for _, line := range s.lines {
		if line.raw != "" {
			b.WriteString(line.raw)
		} else {
			quoted := make([]string, len(line.argv))
			for i, a := range line.argv {
				quoted[i] = Quote(a)
			}
			b.WriteString(strings.Join(quoted, " "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteFile renders the script and writes it executable.
func (s *Script) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(s.Render()), 0o755); err != nil {
		return fmt.Errorf("write script %s: %w", path, err)
	}
	return nil
}

// Quote wraps a value in double quotes when it contains shell
// metacharacters or whitespace, and passes it through untouched otherwise.
func Quote(v string) string {
	if strings.ContainsAny(v, "*?[]${}(); \t>&") {
		return "\"" + v + "\""
	}
	return v
}
