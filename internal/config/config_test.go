package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Storage.Mode != "local" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Scheduler.RestockInterval.Std() != time.Hour {
		t.Fatalf("scheduler defaults not applied: %+v", cfg.Scheduler)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Fatalf("explicit missing file should fail")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen: \":9090\"\nstorage:\n  mode: memory\nscheduler:\n  restockInterval: 30m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Storage.Mode != "memory" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Scheduler.RestockInterval.Std() != 30*time.Minute {
		t.Fatalf("restock interval = %v, want 30m", cfg.Scheduler.RestockInterval)
	}
	// Untouched fields keep their defaults.
	if cfg.Scheduler.CounterIdleTTL.Std() != 15*time.Minute {
		t.Fatalf("idle ttl = %v, want default", cfg.Scheduler.CounterIdleTTL)
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  mode: cloud\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, true); err == nil {
		t.Fatalf("bad storage mode accepted")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Fatalf("explicit CONFIG_PATH to a missing file should fail")
	}

	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("STORAGE_MODE", "memory")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Listen != ":7070" || cfg.Storage.Mode != "memory" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}
