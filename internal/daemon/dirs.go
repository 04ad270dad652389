package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// dirPerm is the permission for daemon-managed directories.
const dirPerm = 0750

// Dirs holds the intake directory layout: payloads arrive in Inbox,
// ingest results land in Outbox, payloads that cannot be accepted move to
// Failed alongside their result.
type Dirs struct {
	Inbox  string
	Outbox string
	Failed string
}

// EnsureDirs creates all intake directories. Idempotent.
func (d Dirs) EnsureDirs() error {
	for _, dir := range []string{d.Inbox, d.Outbox, d.Failed} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// moveFile moves src to dst using os.Rename. If rename fails with EXDEV
// (cross-device link, common with systemd ReadWritePaths bind mounts),
// it falls back to copy + remove.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno != syscall.EXDEV {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
