package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigUnboundedAuditOff(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LoadingLimit != 0 || cfg.BacktrackLimit != 0 || cfg.AuditEnabled {
		t.Errorf("got %+v, want zero-value defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loader.yaml")
	body := "loading_limit: 500\naudit_enabled: true\naudit_path: /tmp/audit.db\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LoadingLimit != 500 {
		t.Errorf("got LoadingLimit %d, want 500", cfg.LoadingLimit)
	}
	if !cfg.AuditEnabled {
		t.Error("expected audit_enabled to be true")
	}
	if cfg.AuditPath != "/tmp/audit.db" {
		t.Errorf("got AuditPath %q", cfg.AuditPath)
	}
	if cfg.BacktrackLimit != 0 {
		t.Errorf("got BacktrackLimit %d, want default 0 (omitted field)", cfg.BacktrackLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("loading_limit: [not a scalar"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
