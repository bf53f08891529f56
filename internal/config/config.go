// Package config loads benchrun configuration from .benchrun/config.yaml.
// Values merge in three layers: built-in defaults, then the config file,
// then explicitly set CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig configures the execution history database.
type HistoryConfig struct {
	// Enabled turns history recording on.
	Enabled bool `yaml:"enabled"`

	// DBPath is the database location, relative to the project root.
	DBPath string `yaml:"db_path"`
}

// Config holds the run options that can live in a config file.
type Config struct {
	// Launcher names the job launcher backend, or "auto" to probe.
	Launcher string `yaml:"launcher"`

	// Timeout bounds each case's execution, in minutes (0 = unlimited).
	Timeout int `yaml:"timeout"`

	// Sleep is the pause between executed cases, in seconds.
	Sleep int `yaml:"sleep"`

	// MakeScript generates a job script in every case directory.
	MakeScript bool `yaml:"make_script"`

	// SkipFinished skips cases the previous run recorded as successful.
	SkipFinished bool `yaml:"skip_finished"`

	// RerunFailed reruns only cases whose validator reports them broken.
	RerunFailed bool `yaml:"rerun_failed"`

	// Verbose tees job output to the terminal.
	Verbose bool `yaml:"verbose"`

	// History configures the execution history database.
	History HistoryConfig `yaml:"history"`
}

// validLaunchers are the accepted launcher names.
var validLaunchers = map[string]bool{
	"auto":   true,
	"mpirun": true,
	"yhrun":  true,
	"slurm":  true,
	"pbs":    true,
	"bsub":   true,
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Launcher:   "auto",
		Timeout:    0,
		Sleep:      0,
		MakeScript: false,
		Verbose:    false,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".benchrun/history.db",
		},
	}
}

// LoadConfig loads configuration from path. A missing file returns the
// defaults without error; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decode over the defaults: keys absent from the document keep their
	// default values, nested sections included.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromDir loads .benchrun/config.yaml below dir. A missing
// directory or file returns the defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".benchrun", "config.yaml"))
}

// MergeWithFlags overlays explicitly set CLI flags onto the configuration.
// Nil pointers mean the flag was not given.
func (c *Config) MergeWithFlags(launcher *string, timeout, sleep *int, makeScript, skipFinished, rerunFailed, verbose *bool) {
	if launcher != nil {
		c.Launcher = *launcher
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if sleep != nil {
		c.Sleep = *sleep
	}
	if makeScript != nil {
		c.MakeScript = *makeScript
	}
	if skipFinished != nil {
		c.SkipFinished = *skipFinished
	}
	if rerunFailed != nil {
		c.RerunFailed = *rerunFailed
	}
	if verbose != nil {
		c.Verbose = *verbose
	}
}

// SleepDuration returns the inter-case pause as a duration.
func (c *Config) SleepDuration() time.Duration {
	return time.Duration(c.Sleep) * time.Second
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if !validLaunchers[c.Launcher] {
		return fmt.Errorf("invalid launcher %q, must be one of: auto, mpirun, yhrun, slurm, pbs, bsub", c.Launcher)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %d", c.Timeout)
	}
	if c.Sleep < 0 {
		return fmt.Errorf("sleep must be >= 0, got %d", c.Sleep)
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}
	return nil
}
