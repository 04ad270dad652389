// Package config holds the runtime configuration for policygate: where
// state lives, which store backs it, and the directories the intake daemon
// watches.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Storage selects the backing store for rules and tasks.
type Storage struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the SQLite database file, ignored for the memory backend.
	Path string `yaml:"path"`
}

// Intake configures the payload inbox the daemon watches.
type Intake struct {
	InboxDir  string `yaml:"inbox_dir"`
	OutboxDir string `yaml:"outbox_dir"`
	FailedDir string `yaml:"failed_dir"`
	// Workers is the number of payloads processed concurrently.
	Workers int `yaml:"workers"`
	// DebounceMS delays processing after a filesystem event settles.
	DebounceMS int `yaml:"debounce_ms"`
}

// Config holds all configurable parameters.
type Config struct {
	// DataDir anchors relative paths below.
	DataDir  string  `yaml:"data_dir"`
	AuditLog string  `yaml:"audit_log"`
	Storage  Storage `yaml:"storage"`
	Intake   Intake  `yaml:"intake"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir:  dataDir,
		AuditLog: filepath.Join(dataDir, "audit.jsonl"),
		Storage: Storage{
			Backend: "sqlite",
			Path:    filepath.Join(dataDir, "policygate.db"),
		},
		Intake: Intake{
			InboxDir:   filepath.Join(dataDir, "inbox"),
			OutboxDir:  filepath.Join(dataDir, "outbox"),
			FailedDir:  filepath.Join(dataDir, "failed"),
			Workers:    2,
			DebounceMS: 250,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".policygate"
	}
	return filepath.Join(home, ".policygate")
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.policygate/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(defaultDataDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	c.DataDir = ExpandHome(c.DataDir)
	c.AuditLog = ExpandHome(c.AuditLog)
	c.Storage.Path = ExpandHome(c.Storage.Path)
	c.Intake.InboxDir = ExpandHome(c.Intake.InboxDir)
	c.Intake.OutboxDir = ExpandHome(c.Intake.OutboxDir)
	c.Intake.FailedDir = ExpandHome(c.Intake.FailedDir)
}

// Validate rejects values nothing downstream could work with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.backend %q is not valid (expected memory or sqlite)", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite backend")
	}
	if c.Intake.Workers < 1 {
		return fmt.Errorf("intake.workers must be >= 1")
	}
	if c.Intake.DebounceMS < 0 {
		return fmt.Errorf("intake.debounce_ms must be >= 0")
	}
	return nil
}
