package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ScaffoldYAML is the commented starter config written by `policygate init`.
const ScaffoldYAML = `# policygate configuration
#
# All paths may be absolute or relative to the working directory.

# Directory for databases, the audit log and intake folders.
data_dir: ~/.policygate

# Hash-chained audit log. Verify it with: policygate audit verify <path>
audit_log: ~/.policygate/audit.jsonl

storage:
  # "sqlite" persists across restarts; "memory" does not.
  backend: sqlite
  path: ~/.policygate/policygate.db

intake:
  # Extraction payloads dropped into inbox_dir are ingested automatically
  # by "policygate serve --intake". Results land in outbox_dir; payloads
  # that fail validation move to failed_dir.
  inbox_dir: ~/.policygate/inbox
  outbox_dir: ~/.policygate/outbox
  failed_dir: ~/.policygate/failed
  workers: 2
  debounce_ms: 250
`

// WriteScaffold writes the starter config to path, refusing to overwrite an
// existing file.
func WriteScaffold(path string) error {
	if path == "" {
		path = filepath.Join(defaultDataDir(), "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(ScaffoldYAML), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ExpandHome resolves a leading ~/ against the user's home directory.
func ExpandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
