package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/policygate/policygate/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is an append-only audit log with SHA-256 hash chaining. Entries are
// held in memory for querying; when opened with a path they are also
// persisted as JSONL, one line per entry, each line's prev_hash being the
// hash of the previous line.
//
// Entries are never edited or removed. Timestamps are monotonically
// non-decreasing in insertion order even if the wall clock steps backwards.
type Log struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	prevHash string
	lastTime time.Time
	entries  []Entry
}

// NewMemory creates an audit log with no backing file. Used by tests and
// in-process servers.
func NewMemory() *Log {
	return &Log{prevHash: GenesisHash}
}

// Open opens (or creates) an audit log file for appending. An existing file
// is replayed to recover both the chain tail and the query index.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	l := &Log{path: path, prevHash: GenesisHash}

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				f.Close()
				return nil, fmt.Errorf("audit: corrupt log line %d: %w", len(l.entries)+1, err)
			}
			l.entries = append(l.entries, entry)
			if ts, err := time.Parse(model.TimestampFormat, entry.Timestamp); err == nil && ts.After(l.lastTime) {
				l.lastTime = ts
			}
			lastLine = line
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			l.prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	l.file = file
	return l, nil
}

// Record appends an entry with hash chaining. It stamps the entry, writes the
// JSONL line (when file-backed), syncs to disk, and indexes it. A write
// failure leaves the log unchanged so the caller can roll back the mutation
// that produced the entry.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(l.lastTime) {
		now = l.lastTime
	}
	entry.Timestamp = now.Format(model.TimestampFormat)
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if l.file != nil {
		if _, err := l.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("audit: write entry: %w", err)
		}
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("audit: sync: %w", err)
		}
	}

	l.prevHash = HashLine(line)
	l.lastTime = now
	l.entries = append(l.entries, entry)
	return nil
}

// Filter selects entries for Query. Zero values mean no constraint.
type Filter struct {
	TaskID   string
	PolicyID string
	Limit    int
}

// Query returns matching entries newest first.
func (l *Log) Query(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if f.TaskID != "" && e.TaskID != f.TaskID {
			continue
		}
		if f.PolicyID != "" && e.PolicyID != f.PolicyID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// TaskEntries returns all entries for a task in insertion order.
func (l *Log) TaskEntries(taskID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close flushes and closes the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
