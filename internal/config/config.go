// Package config loads the loader's tunable limits from YAML, the way the
// teacher's own internal/config package loads interpreter-wide settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every loader-wide tunable. Zero value is DefaultConfig.
type Config struct {
	// LoadingLimit bounds the number of objects a single API call may
	// create before aborting with LoadingLimitExceeded (spec §5's
	// "timeouts are emulated by the loading-limit counter"). Zero means
	// unbounded.
	LoadingLimit int `yaml:"loading_limit"`

	// BacktrackLimit is parsed from the config file but no loader code
	// reads it: CheckConstraintCached always advances overload cursors
	// until every combination is exhausted, whatever this value is.
	BacktrackLimit int `yaml:"backtrack_limit"`

	// AuditEnabled turns on the sqlite commit log in internal/diagnostics.
	// Off by default. When on, a failed audit write aborts the commit it
	// was recording.
	AuditEnabled bool `yaml:"audit_enabled"`

	// AuditPath is the sqlite database file/DSN used when AuditEnabled.
	AuditPath string `yaml:"audit_path"`
}

// DefaultConfig matches the original's unbounded, audit-off behavior.
func DefaultConfig() Config {
	return Config{
		LoadingLimit:   0,
		BacktrackLimit: 0,
		AuditEnabled:   false,
		AuditPath:      "",
	}
}

// Load reads and parses a YAML config file, starting from DefaultConfig so
// an omitted field keeps its default.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
