// Package fsm implements the update state machine.
//
// The machine cycles Idle → Downloading → Verifying → Applying → Rebooting →
// Idle. Each step past Downloading needs an operator confirmation raised
// through the Coordinator; an unanswered confirmation falls back to Idle and
// the next attempt starts again with a fresh download.
package fsm

import (
	"context"
	"log/slog"
	"time"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/metrics"
)

const (
	// DefaultConfirmTimeout bounds every wait for an operator confirmation.
	DefaultConfirmTimeout = 60 * time.Second

	// DefaultCadence is the pause between processing iterations.
	DefaultCadence = 2 * time.Second

	// DefaultArtifact is used when no artifact identity is configured.
	DefaultArtifact = "update_artifact_good.bin"
)

// Options tunes a Machine. Zero values select the defaults above, except
// Cadence where zero disables the pause.
type Options struct {
	Artifact       string
	ConfirmTimeout time.Duration
	Cadence        time.Duration
	Journal        Journal
	Metrics        metrics.Metrics
}

// Machine holds dependencies for state transitions
type Machine struct {
	coord    *Coordinator
	source   ArtifactSource
	checker  IntegrityChecker
	backend  ApplyBackend
	rebooter Rebooter
	journal  Journal
	metrics  metrics.Metrics

	artifact       string
	confirmTimeout time.Duration
	cadence        time.Duration

	// current is touched only by the Run goroutine.
	current *attempt
}

// NewMachine creates a new state machine with dependencies
func NewMachine(
	coord *Coordinator,
	source ArtifactSource,
	checker IntegrityChecker,
	backend ApplyBackend,
	rebooter Rebooter,
	opts Options,
) *Machine {
	if opts.Artifact == "" {
		opts.Artifact = DefaultArtifact
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.Cadence < 0 {
		opts.Cadence = 0
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}

	return &Machine{
		coord:          coord,
		source:         source,
		checker:        checker,
		backend:        backend,
		rebooter:       rebooter,
		journal:        opts.Journal,
		metrics:        opts.Metrics,
		artifact:       opts.Artifact,
		confirmTimeout: opts.ConfirmTimeout,
		cadence:        opts.Cadence,
	}
}

// Artifact returns the identity fetched on every attempt.
func (m *Machine) Artifact() string {
	return m.artifact
}

// State returns the current state.
func (m *Machine) State() State {
	return m.coord.State()
}

// Run drives the machine until ctx is cancelled. It returns nil on
// cancellation; collaborator failures never stop it.
func (m *Machine) Run(ctx context.Context) error {
	if m.coord == nil || m.source == nil || m.checker == nil || m.backend == nil || m.rebooter == nil {
		return errors.New("state machine is missing a dependency")
	}

	slog.Info("state_machine_started",
		"artifact", m.artifact,
		"confirm_timeout", m.confirmTimeout,
		"cadence", m.cadence)

	for {
		var err error
		switch state := m.coord.State(); state {
		case StateIdle:
			err = m.handleIdle(ctx)
		case StateDownloading:
			err = m.handleDownload(ctx)
		case StateVerifying:
			err = m.handleVerify(ctx)
		case StateApplying:
			err = m.handleApply(ctx)
		case StateRebooting:
			err = m.handleReboot(ctx)
		default:
			slog.Error("unknown_state", "state", state)
			m.coord.moveTo(state, StateIdle)
		}

		if err != nil && ctx.Err() == nil {
			// Only cancellation ends the loop.
			slog.Error("state_machine_error", "state", m.coord.State(), "error", err)
			err = nil
		}
		if err == nil {
			err = sleep(ctx, m.cadence)
		}
		if err != nil {
			m.abandon()
			slog.Info("state_machine_stopped", "state", m.coord.State())
			return nil
		}
	}
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
