package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// maxQueueSize buffers the work queue between the debounce flush and the
// worker pool, large enough to absorb a burst of dropped payloads without
// blocking the event loop.
const maxQueueSize = 200

// Watcher watches the inbox for new payload files using fsnotify. Events
// are debounced with a single timer and handed to a fixed worker pool, so
// a burst of files never spawns a burst of goroutines.
type Watcher struct {
	inbox    string
	handler  func(path string)
	debounce time.Duration
	workers  int
}

func NewWatcher(inbox string, workers int, debounce time.Duration, handler func(path string)) *Watcher {
	if workers < 1 {
		workers = 1
	}
	return &Watcher{
		inbox:    inbox,
		handler:  handler,
		debounce: debounce,
		workers:  workers,
	}
}

// Run watches the inbox for new payload files. Blocks until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.inbox); err != nil {
		return err
	}

	// Paths that saw an event and are waiting out the debounce window.
	var mu sync.Mutex
	ready := make(map[string]bool)

	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.run(path)
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	// One debounce timer for the whole inbox, reset on each event.
	// Initialized as stopped; the first event starts it.
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer func() {
		timer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isPayloadFile(event.Name) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

// run shields the worker from a panicking handler.
func (w *Watcher) run(path string) {
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()
	w.handler(path)
}

// ScanExisting processes payload files already sitting in the inbox,
// covering files that arrived while the daemon was down.
func ScanExisting(inbox string, handler func(path string)) error {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(inbox, e.Name())
		if isPayloadFile(path) {
			handler(path)
		}
	}
	return nil
}

// isPayloadFile reports whether the file is a payload (.json, not a .tmp
// partial write and not a result file).
func isPayloadFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") &&
		!strings.HasSuffix(name, ".tmp") &&
		!strings.HasSuffix(name, ".result.json")
}
