package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func collectPaths() (func(string), func() []string) {
	var mu sync.Mutex
	var got []string
	handler := func(path string) {
		mu.Lock()
		got = append(got, path)
		mu.Unlock()
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
	return handler, snapshot
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcherPicksUpNewPayload(t *testing.T) {
	inbox := t.TempDir()
	handler, snapshot := collectPaths()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	w := NewWatcher(inbox, 2, 20*time.Millisecond, handler)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register.
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(inbox, "pol1.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(snapshot()) == 1 }) {
		t.Fatalf("payload never handled, got %v", snapshot())
	}
	if snapshot()[0] != path {
		t.Errorf("handled %s, want %s", snapshot()[0], path)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestWatcherIgnoresNonPayloadFiles(t *testing.T) {
	inbox := t.TempDir()
	handler, snapshot := collectPaths()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWatcher(inbox, 1, 20*time.Millisecond, handler)
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for _, name := range []string{"partial.json.tmp", "notes.txt", "done.result.json"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte("x"), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(inbox, "real.json"), []byte("{}"), 0600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(snapshot()) >= 1 }) {
		t.Fatal("payload never handled")
	}
	// Settle, then check nothing extra was picked up.
	time.Sleep(100 * time.Millisecond)
	got := snapshot()
	if len(got) != 1 || filepath.Base(got[0]) != "real.json" {
		t.Errorf("handled %v, want only real.json", got)
	}
}

func TestScanExisting(t *testing.T) {
	inbox := t.TempDir()
	for _, name := range []string{"a.json", "b.json", "skip.tmp"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte("{}"), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	handler, snapshot := collectPaths()
	if err := ScanExisting(inbox, handler); err != nil {
		t.Fatalf("ScanExisting failed: %v", err)
	}
	if got := snapshot(); len(got) != 2 {
		t.Errorf("handled %v, want the two .json files", got)
	}

	// A missing inbox is not an error at startup.
	if err := ScanExisting(filepath.Join(inbox, "missing"), handler); err != nil {
		t.Errorf("missing inbox: %v", err)
	}
}

func TestIsPayloadFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"pol.json", true},
		{"pol.json.tmp", false},
		{"pol.result.json", false},
		{"pol.txt", false},
	}
	for _, c := range cases {
		if got := isPayloadFile(c.path); got != c.want {
			t.Errorf("isPayloadFile(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
