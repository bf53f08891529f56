// Package project loads benchmark test projects: the TestProject.json
// manifest, the per-case TestCase.json specifications and the persisted run
// history. A project is read once at orchestration start and is immutable
// afterwards; case specifications are read lazily, one per iteration step.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Well-known file names inside a project tree.
const (
	ManifestName = "TestProject.json"
	CaseSpecName = "TestCase.json"
	StatsName    = "run_stats.json"
)

// SupportedVersion is the only manifest version this tool understands.
const SupportedVersion = 1

// CaseRef identifies one case inside a project: its test vector and its
// directory path relative to the project root. CaseRef is also the element
// type of the persisted run-stats buckets.
type CaseRef struct {
	TestVector TestVector `json:"test_vector"`
	Path       string     `json:"path"`
}

// Equal reports whether two refs name the same case. Paths are compared
// cleaned, vectors by factor-wise value equality.
func (r CaseRef) Equal(other CaseRef) bool {
	return path.Clean(r.Path) == path.Clean(other.Path) && r.TestVector.Equal(other.TestVector)
}

// Case is one loaded test case: its identity plus the parsed specification.
type Case struct {
	TestVector TestVector
	// RelPath is the case directory relative to the project root, cleaned.
	RelPath string
	// Dir is the absolute case directory.
	Dir  string
	Spec *CaseSpec
}

// Ref returns the case's identity for stats bookkeeping.
func (c *Case) Ref() CaseRef {
	return CaseRef{TestVector: c.TestVector, Path: c.RelPath}
}

// Project is a loaded test project manifest.
type Project struct {
	Root        string
	Name        string
	TestFactors []string
	DataFiles   []string

	// LastStats holds the previous run's persisted stats when present,
	// used to seed skip-finished decisions. Nil when no history exists.
	LastStats *RunStats

	refs []CaseRef
}

type manifest struct {
	Version     *int      `json:"version"`
	Name        string    `json:"name"`
	TestFactors []string  `json:"test_factors"`
	DataFiles   []string  `json:"data_files"`
	TestCases   []CaseRef `json:"test_cases"`
}

// Load reads a project manifest from root. A missing manifest, a missing or
// unsupported version, or an unreadable file is a configuration error.
func Load(root string) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %s: %w", root, err)
	}

	manifestPath := filepath.Join(absRoot, ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid project directory %s: missing %s", root, ManifestName)
		}
		return nil, fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}
	if m.Version == nil {
		return nil, fmt.Errorf("manifest %s: missing version, only version %d is supported", manifestPath, SupportedVersion)
	}
	if *m.Version != SupportedVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d, only version %d is supported", manifestPath, *m.Version, SupportedVersion)
	}

	p := &Project{
		Root:        absRoot,
		Name:        m.Name,
		TestFactors: m.TestFactors,
		DataFiles:   m.DataFiles,
		refs:        m.TestCases,
	}

	statsPath := filepath.Join(absRoot, StatsName)
	if _, err := os.Stat(statsPath); err == nil {
		stats, err := LoadStats(statsPath)
		if err != nil {
			return nil, err
		}
		p.LastStats = stats
	}

	return p, nil
}

// CountCases returns the number of declared cases without reading any case
// specification.
func (p *Project) CountCases() int {
	return len(p.refs)
}

// LoadCase reads and parses one case specification. The case directory and
// its TestCase.json must exist.
func (p *Project) LoadCase(ref CaseRef) (*Case, error) {
	rel := path.Clean(ref.Path)
	dir := filepath.Join(p.Root, filepath.FromSlash(rel))
	specPath := filepath.Join(dir, CaseSpecName)

	data, err := os.ReadFile(specPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("test case spec for %s not found in %s", rel, dir)
		}
		return nil, fmt.Errorf("read case spec %s: %w", specPath, err)
	}

	spec, err := ParseCaseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", rel, err)
	}

	return &Case{
		TestVector: ref.TestVector,
		RelPath:    rel,
		Dir:        dir,
		Spec:       spec,
	}, nil
}

// EachCase iterates the cases in manifest order, loading one specification
// at a time. Iteration stops on the first error, including any error
// returned by fn. The sequence is restartable: each call re-reads the case
// specifications.
func (p *Project) EachCase(fn func(*Case) error) error {
	for _, ref := range p.refs {
		c, err := p.LoadCase(ref)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Check verifies that every declared case directory exists and carries a
// parseable specification. It reads every case spec but executes nothing.
func (p *Project) Check() error {
	for _, ref := range p.refs {
		dir := filepath.Join(p.Root, filepath.FromSlash(path.Clean(ref.Path)))
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("test case %s not found in %s", ref.Path, dir)
		}
		if _, err := p.LoadCase(ref); err != nil {
			return err
		}
	}
	return nil
}
