package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/policygate/policygate/internal/ingest"
	"github.com/policygate/policygate/internal/pipeline"
)

// retryMaxElapsed bounds how long a storage failure is retried before the
// payload is parked in the failed directory.
const retryMaxElapsed = 30 * time.Second

// Result is written to the outbox (or failed directory) for every payload
// the daemon picks up.
type Result struct {
	Payload     string                 `json:"payload"`
	PolicyID    string                 `json:"policy_id,omitempty"`
	Status      string                 `json:"status"`
	ErrorKind   string                 `json:"error_kind,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Ingest      *pipeline.IngestResult `json:"ingest,omitempty"`
	CompletedAt time.Time              `json:"completed_at"`
}

const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Processor ingests one payload file at a time: read, validate, submit to
// the pipeline, and report the outcome next to where the payload came from.
type Processor struct {
	dirs Dirs
	pipe *pipeline.Pipeline
}

func NewProcessor(dirs Dirs, pipe *pipeline.Pipeline) *Processor {
	return &Processor{dirs: dirs, pipe: pipe}
}

// Process handles a single payload file through its full lifecycle:
// read, validate, ingest, write result, clean up the inbox.
func (p *Processor) Process(path string) error {
	// Reject symlinks before reading: an inbox symlink could otherwise
	// point the daemon at arbitrary files on the host.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat payload: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return p.reject(path, "", "invalid_input", "rejected symlink")
	}

	payload, err := ingest.ReadPayload(path)
	if err != nil {
		return p.reject(path, "", "invalid_input", err.Error())
	}

	var result pipeline.IngestResult
	op := func() error {
		var ingestErr error
		result, ingestErr = p.pipe.IngestPolicy(payload)
		if ingestErr == nil {
			return nil
		}
		// Only storage failures are transient; everything else is a
		// property of the payload and retrying cannot change it.
		if pipeline.ErrKind(ingestErr) == "storage_failure" {
			return ingestErr
		}
		return backoff.Permanent(ingestErr)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	if err := backoff.Retry(op, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return p.reject(path, payload.PolicyID, pipeline.ErrKind(err), err.Error())
	}

	if err := p.writeResult(p.dirs.Outbox, Result{
		Payload:     filepath.Base(path),
		PolicyID:    result.PolicyID,
		Status:      ResultAccepted,
		Ingest:      &result,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return os.Remove(path)
}

// reject parks the payload in the failed directory with a result naming the
// error kind, so the submitter can fix and resubmit.
func (p *Processor) reject(path, policyID, kind, msg string) error {
	res := Result{
		Payload:     filepath.Base(path),
		PolicyID:    policyID,
		Status:      ResultRejected,
		ErrorKind:   kind,
		Error:       msg,
		CompletedAt: time.Now().UTC(),
	}
	if err := p.writeResult(p.dirs.Failed, res); err != nil {
		return err
	}
	dst := filepath.Join(p.dirs.Failed, filepath.Base(path))
	if err := moveFile(path, dst); err != nil {
		return fmt.Errorf("move to failed: %w", err)
	}
	return nil
}

// writeResult writes a result JSON next to the payload's base name.
func (p *Processor) writeResult(dir string, r Result) error {
	name := strings.TrimSuffix(r.Payload, ".json") + ".result.json"
	return ingest.WriteJSON(filepath.Join(dir, name), r)
}
