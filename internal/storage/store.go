// Package storage backs the rule and task stores with SQLite, for
// deployments that need state to survive restarts. One Store implements
// both store interfaces over a single database file.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS policies (
	policy_id TEXT PRIMARY KEY,
	title     TEXT NOT NULL DEFAULT '',
	rule_ids  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
	policy_id        TEXT NOT NULL,
	rule_id          TEXT NOT NULL,
	action           TEXT NOT NULL,
	conditions       TEXT NOT NULL,
	responsible_role TEXT NOT NULL DEFAULT '',
	beneficiary      TEXT NOT NULL DEFAULT '',
	deadline         TEXT NOT NULL DEFAULT '',
	ambiguity_flag   INTEGER NOT NULL DEFAULT 0,
	ambiguity_reason TEXT NOT NULL DEFAULT '',
	task_id          TEXT NOT NULL DEFAULT '',
	version          INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (policy_id, rule_id),
	FOREIGN KEY (policy_id) REFERENCES policies(policy_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id       TEXT PRIMARY KEY,
	policy_id     TEXT NOT NULL,
	rule_id       TEXT NOT NULL,
	name          TEXT NOT NULL,
	assigned_role TEXT NOT NULL,
	status        TEXT NOT NULL,
	deadline      TEXT NOT NULL DEFAULT '',
	escalated_to  TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_tasks_role ON tasks(assigned_role);
`

// Store is a SQLite-backed implementation of rules.Store and tasks.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and initializes the
// schema. Pass ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection sidesteps SQLITE_BUSY
	// and keeps in-memory databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
