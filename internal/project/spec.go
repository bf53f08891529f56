package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TestVector maps factor names to values. Values keep their JSON
// representation (string, json.Number or bool) so persisting a vector
// round-trips without a float detour.
type TestVector map[string]any

// UnmarshalJSON decodes a vector preserving numeric values as json.Number.
func (v *TestVector) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	m := make(map[string]any)
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*v = m
	return nil
}

// Equal compares two vectors by stringified value, order-irrelevant.
func (v TestVector) Equal(other TestVector) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		otherVal, ok := other[k]
		if !ok {
			return false
		}
		a, err := stringify(val)
		if err != nil {
			return false
		}
		b, err := stringify(otherVal)
		if err != nil {
			return false
		}
		if a != b {
			return false
		}
	}
	return true
}

// String renders the vector as "factor=value" pairs in JSON key order.
func (v TestVector) String() string {
	data, err := json.Marshal(map[string]any(v))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(v))
	}
	return string(data)
}

// EnvEntry is one name/value pair of an ordered mapping.
type EnvEntry struct {
	Name  string
	Value string
}

// EnvMap is a mapping that preserves the key order of its JSON source.
// It backs both the `envs` and `mirror_files` case-spec fields, where the
// file order determines export and staging order in generated scripts.
type EnvMap []EnvEntry

// UnmarshalJSON decodes a JSON object keeping key order and stringifying
// every value.
func (m *EnvMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	var entries EnvMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := stringify(raw)
		if err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		entries = append(entries, EnvEntry{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = entries
	return nil
}

// Environ renders the mapping as "NAME=VALUE" strings suitable for
// exec.Cmd.Env.
func (m EnvMap) Environ() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Name + "=" + e.Value
	}
	return out
}

// RunSpec carries the process geometry of a case. Nprocs is mandatory;
// zero in any other field means the case spec left it out.
type RunSpec struct {
	Nprocs       int
	Nnodes       int
	ProcsPerNode int
	TasksPerProc int
}

// ValidatorSpec declares the success predicate of a case.
type ValidatorSpec struct {
	Exists   []string          `json:"exists"`
	Contains map[string]string `json:"contains"`
}

// CaseSpec is a parsed TestCase.json document. Cmd and Envs values are
// stringified at load time.
type CaseSpec struct {
	Cmd         []string
	Envs        EnvMap
	Run         RunSpec
	Results     []string
	Validator   *ValidatorSpec
	MirrorFiles EnvMap
}

type caseSpecJSON struct {
	Cmd         []any          `json:"cmd"`
	Envs        EnvMap         `json:"envs"`
	Run         map[string]any `json:"run"`
	Results     []any          `json:"results"`
	Validator   *ValidatorSpec `json:"validator"`
	MirrorFiles EnvMap         `json:"mirror_files"`
}

// ParseCaseSpec parses a TestCase.json document. A missing or non-positive
// run.nprocs is a configuration error, never defaulted.
func ParseCaseSpec(data []byte) (*CaseSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw caseSpecJSON
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse case spec: %w", err)
	}

	spec := &CaseSpec{
		Envs:        raw.Envs,
		Validator:   raw.Validator,
		MirrorFiles: raw.MirrorFiles,
	}

	for i, v := range raw.Cmd {
		s, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("cmd[%d]: %w", i, err)
		}
		spec.Cmd = append(spec.Cmd, s)
	}
	if len(spec.Cmd) == 0 {
		return nil, fmt.Errorf("case spec has an empty cmd")
	}

	for i, v := range raw.Results {
		s, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
		spec.Results = append(spec.Results, s)
	}

	run, err := parseRunSpec(raw.Run)
	if err != nil {
		return nil, err
	}
	spec.Run = run

	return spec, nil
}

func parseRunSpec(raw map[string]any) (RunSpec, error) {
	var run RunSpec
	if raw == nil {
		return run, fmt.Errorf("case spec has no run section")
	}

	nprocs, ok := raw["nprocs"]
	if !ok {
		return run, fmt.Errorf("run.nprocs is required")
	}
	n, err := intValue(nprocs)
	if err != nil {
		return run, fmt.Errorf("run.nprocs: %w", err)
	}
	if n <= 0 {
		return run, fmt.Errorf("run.nprocs must be positive, got %d", n)
	}
	run.Nprocs = n

	optional := []struct {
		key  string
		dest *int
	}{
		{"nnodes", &run.Nnodes},
		{"procs_per_node", &run.ProcsPerNode},
		{"tasks_per_proc", &run.TasksPerProc},
	}
	for _, f := range optional {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		n, err := intValue(v)
		if err != nil {
			return run, fmt.Errorf("run.%s: %w", f.key, err)
		}
		*f.dest = n
	}

	return run, nil
}

// stringify renders a decoded JSON scalar the way it appears on a command
// line: numbers keep their source form, booleans render as true/false.
func stringify(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		// Only reached when the decoder did not use json.Number.
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}

// intValue coerces a decoded JSON scalar to an integer. Numeric strings are
// accepted since hand-written case specs quote counts now and then.
func intValue(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(x.String())
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", x.String())
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	case float64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("not an integer: %v (%T)", v, v)
	}
}
