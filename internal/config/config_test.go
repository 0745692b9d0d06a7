package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.DBFile != "inkwell.db" {
		t.Errorf("DBFile = %q", cfg.DBFile)
	}
	if cfg.RootFolder != "Inkwell" {
		t.Errorf("RootFolder = %q", cfg.RootFolder)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %s", cfg.SyncInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.DBPath() != filepath.Join(dir, "inkwell.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "root-folder: Journal\nsync-interval: 90s\nmax-retries: 5\ndashboard-addr: 127.0.0.1:7420\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootFolder != "Journal" {
		t.Errorf("RootFolder = %q, want Journal", cfg.RootFolder)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Errorf("SyncInterval = %s, want 90s", cfg.SyncInterval)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.DashboardAddr != "127.0.0.1:7420" {
		t.Errorf("DashboardAddr = %q", cfg.DashboardAddr)
	}
}

func TestEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("root-folder: Journal\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INKWELL_ROOT_FOLDER", "FromEnv")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootFolder != "FromEnv" {
		t.Errorf("RootFolder = %q, want FromEnv", cfg.RootFolder)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad interval", "sync-interval: often\n"},
		{"negative interval", "sync-interval: -5m\n"},
		{"zero retries", "max-retries: 0\n"},
		{"malformed yaml", "root-folder: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}
