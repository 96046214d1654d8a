// Package apply writes verified update content to persistent storage.
package apply

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fly-io/update-agent/pkg/errors"
)

// DefaultDelay is how long the simulated write takes.
const DefaultDelay = time.Second

// DelayBackend simulates a write that takes observable wall-clock time and
// always succeeds.
type DelayBackend struct {
	Delay time.Duration
}

// Apply waits for the configured delay. It fails only if ctx ends first.
func (b DelayBackend) Apply(ctx context.Context, data []byte) error {
	slog.Info("apply_start", "backend", "delay", "size_bytes", len(data), "delay", b.Delay)
	if err := sleep(ctx, b.Delay); err != nil {
		return err
	}
	slog.Info("apply_complete", "backend", "delay")
	return nil
}

// FileBackend stages the content into a single target file, standing in
// for the inactive partition of an A/B layout.
type FileBackend struct {
	Target string
	Delay  time.Duration
}

// Apply writes data to a temporary file next to Target and renames it into
// place, so Target only ever holds a complete image.
func (b FileBackend) Apply(ctx context.Context, data []byte) error {
	slog.Info("apply_start", "backend", "file", "target", b.Target, "size_bytes", len(data))

	if len(data) == 0 {
		return errors.New("refusing to apply empty content")
	}

	dir := filepath.Dir(b.Target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("apply_dir_creation_failed", "path", dir, "error", err)
		return errors.Wrap(err, "failed to create target dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Target)+".*.tmp")
	if err != nil {
		slog.Error("apply_temp_creation_failed", "dir", dir, "error", err)
		return errors.Wrap(err, "failed to create temp file")
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		slog.Error("apply_write_failed", "path", tmp.Name(), "error", err)
		return errors.Wrap(err, "failed to write content")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync content")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := sleep(ctx, b.Delay); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), b.Target); err != nil {
		slog.Error("apply_rename_failed", "target", b.Target, "error", err)
		return errors.Wrap(err, "failed to move content into place")
	}
	committed = true

	slog.Info("apply_complete", "backend", "file", "target", b.Target)
	return nil
}

// Remove deletes the staged target, if any.
func (b FileBackend) Remove() error {
	if err := os.Remove(b.Target); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove staged content")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
