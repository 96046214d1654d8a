package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fly-io/update-agent/internal/config"
	"github.com/fly-io/update-agent/pkg/apply"
	"github.com/fly-io/update-agent/pkg/artifact"
	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/fsm"
	"github.com/fly-io/update-agent/pkg/reboot"
	"github.com/fly-io/update-agent/pkg/security"
	"github.com/fly-io/update-agent/pkg/storage"
)

// ensureDirectories creates the parent directory of every non-empty path
func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", p)
		}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}
	return cfg, nil
}

func newSource(ctx context.Context, cfg *config.Config, validator *security.Validator) (fsm.ArtifactSource, error) {
	if cfg.ArtifactSource == config.SourceS3 {
		client, err := storage.NewClient(ctx, cfg.S3Bucket, cfg.S3Region, validator)
		if err != nil {
			return nil, errors.Wrap(err, "S3 client failed")
		}
		return client, nil
	}
	return artifact.NewFileSource(cfg.ArtifactDir, validator), nil
}

func newBackend(cfg *config.Config) (fsm.ApplyBackend, error) {
	if cfg.ApplyBackend == config.BackendFile {
		if err := ensureDirectories(cfg.ApplyTarget); err != nil {
			return nil, err
		}
		return apply.FileBackend{Target: cfg.ApplyTarget, Delay: cfg.ApplyDelay}, nil
	}
	return apply.DelayBackend{Delay: cfg.ApplyDelay}, nil
}

func newRebooter(cfg *config.Config) fsm.Rebooter {
	name, args := cfg.RebootArgs()
	if name == "" {
		return reboot.LogOnly{}
	}
	return reboot.Command{Name: name, Args: args}
}
