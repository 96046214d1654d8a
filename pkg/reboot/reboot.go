// Package reboot performs the device reboot that activates an applied update.
package reboot

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/fly-io/update-agent/pkg/errors"
)

// LogOnly announces the reboot without touching the host.
type LogOnly struct{}

// Reboot logs the request and reports success.
func (LogOnly) Reboot(ctx context.Context) error {
	slog.Info("reboot_requested", "action", "log_only")
	return nil
}

// Command runs an external program, e.g. "systemctl reboot".
type Command struct {
	Name string
	Args []string
}

// Reboot runs the command and fails if it exits non-zero.
func (c Command) Reboot(ctx context.Context) error {
	slog.Info("reboot_requested", "action", "command", "command", c.Name, "args", c.Args)

	out, err := exec.CommandContext(ctx, c.Name, c.Args...).CombinedOutput()
	if err != nil {
		slog.Error("reboot_command_failed", "command", c.Name, "output", string(out), "error", err)
		return errors.Wrapf(err, "reboot command %q failed", c.Name)
	}

	slog.Info("reboot_command_complete", "command", c.Name)
	return nil
}
