package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fly-io/update-agent/pkg/errors"
)

var (
	// ErrInvalidIdentity is returned for artifact names that are empty or
	// escape the artifact root.
	ErrInvalidIdentity = errors.New("security: invalid artifact identity")

	// ErrTooLarge is returned for artifacts above the configured size limit.
	ErrTooLarge = errors.New("security: artifact too large")
)

// Validator checks artifact identities and sizes before they are fetched
type Validator struct {
	maxArtifactSize int64
}

// NewValidator creates a new artifact validator
func NewValidator(maxArtifactSize int64) *Validator {
	slog.Info("security_validator_init", "max_artifact_size_mb", maxArtifactSize/1024/1024)

	return &Validator{maxArtifactSize: maxArtifactSize}
}

// ValidateIdentity checks a name relative to an artifact root.
// Absolute names are accepted only when root is empty, since then the
// operator named the file directly.
func (v *Validator) ValidateIdentity(root, name string) error {
	if strings.TrimSpace(name) == "" {
		slog.Error("security_identity_validation_failed", "artifact", name, "reason", "empty")
		return fmt.Errorf("%w: empty name", ErrInvalidIdentity)
	}

	if root == "" {
		return nil
	}

	if filepath.IsAbs(name) {
		slog.Error("security_identity_validation_failed", "artifact", name, "reason", "absolute_path")
		return fmt.Errorf("%w: absolute path not allowed: %s", ErrInvalidIdentity, name)
	}

	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		slog.Error("security_identity_validation_failed", "artifact", name, "reason", "path_traversal")
		return fmt.Errorf("%w: path traversal detected: %s", ErrInvalidIdentity, name)
	}

	return nil
}

// ValidateKey checks an object-store key
func (v *Validator) ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		slog.Error("security_key_validation_failed", "s3_key", key)
		return fmt.Errorf("%w: bad object key %q", ErrInvalidIdentity, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			slog.Error("security_key_validation_failed", "s3_key", key, "reason", "path_traversal")
			return fmt.Errorf("%w: path traversal detected: %s", ErrInvalidIdentity, key)
		}
	}
	return nil
}

// ValidateSize checks if an artifact exceeds the max artifact size
func (v *Validator) ValidateSize(size int64) error {
	if size > v.maxArtifactSize {
		slog.Error("security_artifact_size_exceeded",
			"size_bytes", size,
			"max_artifact_size_bytes", v.maxArtifactSize)
		return fmt.Errorf("%w: size %d exceeds max %d", ErrTooLarge, size, v.maxArtifactSize)
	}
	return nil
}

// MaxSize returns the configured artifact size limit
func (v *Validator) MaxSize() int64 {
	return v.maxArtifactSize
}
