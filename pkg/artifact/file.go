// Package artifact provides the local file Artifact Source.
package artifact

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/security"
)

var (
	// ErrNotFound is returned when the named artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrEmpty is returned when the named artifact has no content.
	ErrEmpty = errors.New("artifact is empty")
)

// FileSource reads artifacts from the local filesystem
type FileSource struct {
	root      string
	validator *security.Validator
}

// NewFileSource creates a file source. Relative identities resolve against
// root, or the working directory when root is empty.
func NewFileSource(root string, validator *security.Validator) *FileSource {
	return &FileSource{root: root, validator: validator}
}

// Fetch reads the whole artifact into memory. Missing, unreadable, empty or
// oversized artifacts are failures.
func (s *FileSource) Fetch(ctx context.Context, identity string) ([]byte, error) {
	if err := s.validator.ValidateIdentity(s.root, identity); err != nil {
		return nil, err
	}

	path := s.resolve(identity)
	slog.Info("artifact_fetch_start", "artifact", identity, "path", path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Error("artifact_not_found", "path", path)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		slog.Error("artifact_open_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to open artifact")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Error("artifact_stat_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to stat artifact")
	}
	if info.IsDir() {
		slog.Error("artifact_is_directory", "path", path)
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	if info.Size() == 0 {
		slog.Error("artifact_empty", "path", path)
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	if err := s.validator.ValidateSize(info.Size()); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Bound the read in case the file grows between Stat and ReadAll.
	data, err := io.ReadAll(io.LimitReader(f, s.validator.MaxSize()+1))
	if err != nil {
		slog.Error("artifact_read_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to read artifact")
	}
	if err := s.validator.ValidateSize(int64(len(data))); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	slog.Info("artifact_fetch_complete", "artifact", identity, "size_bytes", len(data))
	return data, nil
}

func (s *FileSource) resolve(identity string) string {
	if s.root == "" || filepath.IsAbs(identity) {
		return identity
	}
	return filepath.Join(s.root, identity)
}
