// Package config loads the application configuration.
//
// Settings come from three layers, strongest first: INKWELL_* environment
// variables, config.yml in the data directory, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the sync engine exposes.
type Config struct {
	// DataDir is where the database, token file, and logs live.
	DataDir string

	// DBFile is the database filename inside DataDir.
	DBFile string

	// TokenFile is the credential filename inside DataDir.
	TokenFile string

	// RootFolder is the remote folder holding the journal.
	RootFolder string

	// LegacyRootFolder is consulted during hydration when RootFolder
	// yields nothing. Empty disables the fallback.
	LegacyRootFolder string

	// SyncInterval is the period between background sync passes.
	SyncInterval time.Duration

	// MaxRetries is the delivery attempt cap per queued mutation.
	MaxRetries int

	// DashboardAddr is the dashboard listen address. Empty disables it.
	DashboardAddr string

	// LogFile is the daemon log path. Empty logs to stderr.
	LogFile string
}

// DBPath returns the full database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// TokenPath returns the full credential file path.
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, c.TokenFile)
}

// TriggerFilePath returns the sync trigger file the CLI touches to
// nudge a running daemon.
func (c *Config) TriggerFilePath() string {
	return filepath.Join(c.DataDir, "sync-trigger")
}

// FolderCachePath returns the persisted folder-ID snapshot path.
func (c *Config) FolderCachePath() string {
	return filepath.Join(c.DataDir, "folders.json")
}

// DefaultDataDir returns ~/.inkwell, or a relative fallback when the
// home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inkwell"
	}
	return filepath.Join(home, ".inkwell")
}

// Load reads configuration for the given data directory. An empty
// dataDir means the default location. A missing config.yml is fine;
// a malformed one is an error.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("db-file", "inkwell.db")
	v.SetDefault("token-file", "token.json")
	v.SetDefault("root-folder", "Inkwell")
	v.SetDefault("legacy-root-folder", "")
	v.SetDefault("sync-interval", "5m")
	v.SetDefault("max-retries", 3)
	v.SetDefault("dashboard-addr", "")
	v.SetDefault("log-file", "")

	configPath := filepath.Join(dataDir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("INKWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	interval, err := time.ParseDuration(v.GetString("sync-interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync-interval %q: %w", v.GetString("sync-interval"), err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sync-interval must be positive, got %s", interval)
	}

	retries := v.GetInt("max-retries")
	if retries <= 0 {
		return nil, fmt.Errorf("max-retries must be positive, got %d", retries)
	}

	return &Config{
		DataDir:          dataDir,
		DBFile:           v.GetString("db-file"),
		TokenFile:        v.GetString("token-file"),
		RootFolder:       v.GetString("root-folder"),
		LegacyRootFolder: v.GetString("legacy-root-folder"),
		SyncInterval:     interval,
		MaxRetries:       retries,
		DashboardAddr:    v.GetString("dashboard-addr"),
		LogFile:          v.GetString("log-file"),
	}, nil
}
