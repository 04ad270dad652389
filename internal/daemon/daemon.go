// Package daemon runs the payload intake loop: it watches an inbox
// directory for extraction payloads, feeds them through the pipeline and
// reports results to an outbox. Payloads that cannot be accepted are parked
// in a failed directory with the error kind attached.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/policygate/policygate/internal/config"
	"github.com/policygate/policygate/internal/pipeline"
)

// Intake ties the watcher and processor together over one pipeline.
type Intake struct {
	dirs      Dirs
	processor *Processor
	workers   int
	debounce  time.Duration
}

// NewIntake builds the intake loop from configuration.
func NewIntake(cfg config.Intake, pipe *pipeline.Pipeline) *Intake {
	dirs := Dirs{
		Inbox:  cfg.InboxDir,
		Outbox: cfg.OutboxDir,
		Failed: cfg.FailedDir,
	}
	return &Intake{
		dirs:      dirs,
		processor: NewProcessor(dirs, pipe),
		workers:   cfg.Workers,
		debounce:  time.Duration(cfg.DebounceMS) * time.Millisecond,
	}
}

// Run creates the intake directories, drains payloads that arrived while
// the daemon was down, then watches the inbox until ctx is cancelled.
func (i *Intake) Run(ctx context.Context) error {
	if err := i.dirs.EnsureDirs(); err != nil {
		return err
	}

	handle := func(path string) {
		// Errors here mean the result could not even be written; the
		// payload stays in the inbox for the next run.
		if err := i.processor.Process(path); err != nil {
			fmt.Fprintf(os.Stderr, "intake: %s: %v\n", filepath.Base(path), err)
		}
	}

	if err := ScanExisting(i.dirs.Inbox, handle); err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}

	w := NewWatcher(i.dirs.Inbox, i.workers, i.debounce, handle)
	return w.Run(ctx)
}
