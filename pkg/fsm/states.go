package fsm

import (
	"context"
	"log/slog"

	"github.com/fly-io/update-agent/pkg/db"
	"github.com/google/uuid"
)

// attempt is one pass from Downloading towards Rebooting. Its bytes are
// dropped as soon as the attempt ends, whatever the outcome.
type attempt struct {
	id   string
	data []byte
}

// handleIdle blocks until an update is requested
func (m *Machine) handleIdle(ctx context.Context) error {
	slog.Info("state_idle")

	if _, err := m.coord.await(ctx, SignalStartUpdate, 0); err != nil {
		return err
	}
	m.transitioned(StateIdle, StateDownloading)

	m.current = &attempt{id: uuid.NewString()}
	m.record(func(j Journal) error {
		return j.Create(&db.Attempt{ID: m.current.id, Artifact: m.artifact, Status: db.StatusDownloading})
	})
	return nil
}

// handleDownload fetches the artifact, then waits for --verify
func (m *Machine) handleDownload(ctx context.Context) error {
	slog.Info("state_downloading", "attempt_id", m.attemptID(), "artifact", m.artifact)

	data, err := m.source.Fetch(ctx, m.artifact)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("download_failed", "attempt_id", m.attemptID(), "artifact", m.artifact, "error", err)
		m.fail(StateDownloading, err)
		return nil
	}

	m.ensureAttempt()
	m.current.data = data
	m.record(func(j Journal) error { return j.SetSize(m.current.id, int64(len(data))) })

	slog.Info("download_complete", "attempt_id", m.attemptID(), "size_bytes", len(data))
	slog.Info("ready_to_verify", "attempt_id", m.attemptID(), "command", TokenVerify, "timeout", m.confirmTimeout)

	return m.confirm(ctx, SignalVerify, db.StatusVerifying)
}

// handleVerify checks the fetched bytes, then waits for --apply
func (m *Machine) handleVerify(ctx context.Context) error {
	slog.Info("state_verifying", "attempt_id", m.attemptID())

	m.ensureAttempt()
	if !m.checker.Verify(m.current.data) {
		slog.Error("verification_failed", "attempt_id", m.attemptID(), "size_bytes", len(m.current.data))
		m.fail(StateVerifying, ErrVerification)
		return nil
	}

	slog.Info("verification_complete", "attempt_id", m.attemptID())
	slog.Info("ready_to_apply", "attempt_id", m.attemptID(), "command", TokenApply, "timeout", m.confirmTimeout)

	return m.confirm(ctx, SignalApply, db.StatusApplying)
}

// handleApply writes the verified content, then waits for --reboot
func (m *Machine) handleApply(ctx context.Context) error {
	slog.Info("state_applying", "attempt_id", m.attemptID())

	m.ensureAttempt()
	if err := m.backend.Apply(ctx, m.current.data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("apply_failed", "attempt_id", m.attemptID(), "error", err)
		m.fail(StateApplying, err)
		return nil
	}

	slog.Info("update_applied", "attempt_id", m.attemptID())
	slog.Info("ready_to_reboot", "attempt_id", m.attemptID(), "command", TokenReboot, "timeout", m.confirmTimeout)

	return m.confirm(ctx, SignalReboot, db.StatusRebooting)
}

// handleReboot performs the reboot action and always returns to Idle
func (m *Machine) handleReboot(ctx context.Context) error {
	slog.Info("state_rebooting", "attempt_id", m.attemptID())

	status, msg := db.StatusCompleted, ""
	if err := m.rebooter.Reboot(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("reboot_failed", "attempt_id", m.attemptID(), "error", err)
		status, msg = db.StatusFailed, "reboot: "+err.Error()
	}

	if m.coord.moveTo(StateRebooting, StateIdle) {
		m.transitioned(StateRebooting, StateIdle)
	}
	m.finish(status, msg)
	return nil
}

// confirm waits for sig and either advances or, on timeout, falls back to
// Idle discarding the attempt.
func (m *Machine) confirm(ctx context.Context, sig Signal, next string) error {
	ok, err := m.coord.await(ctx, sig, m.confirmTimeout)
	if err != nil {
		return err
	}

	if !ok {
		slog.Warn("confirmation_timeout",
			"attempt_id", m.attemptID(),
			"state", sig.Gate(),
			"awaiting", sig.Token(),
			"timeout", m.confirmTimeout)
		m.transitioned(sig.Gate(), StateIdle)
		m.finish(db.StatusTimedOut, "no "+sig.Token()+" within "+m.confirmTimeout.String())
		return nil
	}

	m.transitioned(sig.Gate(), sig.Next())
	m.record(func(j Journal) error { return j.UpdateStatus(m.current.id, next, "") })
	return nil
}

// fail returns the machine to Idle after a collaborator failure
func (m *Machine) fail(from State, cause error) {
	if m.coord.moveTo(from, StateIdle) {
		m.transitioned(from, StateIdle)
	}
	m.finish(db.StatusFailed, cause.Error())
}

// finish closes the current attempt and drops its bytes
func (m *Machine) finish(status, msg string) {
	if m.current == nil {
		return
	}
	id := m.current.id
	m.record(func(j Journal) error { return j.UpdateStatus(id, status, msg) })
	m.metrics.IncAttempt(status)
	slog.Info("attempt_finished", "attempt_id", id, "status", status, "reason", msg)
	m.current = nil
}

// abandon closes an in-flight attempt on shutdown
func (m *Machine) abandon() {
	if m.current != nil {
		m.finish(db.StatusCancelled, "agent shutting down")
	}
}

func (m *Machine) transitioned(from, to State) {
	slog.Info("state_transition", "attempt_id", m.attemptID(), "from", from, "to", to)
	m.metrics.IncTransition(string(from), string(to))
}

// ensureAttempt guards against entering a working state without an attempt,
// which only happens if a handler was skipped.
func (m *Machine) ensureAttempt() {
	if m.current == nil {
		m.current = &attempt{id: uuid.NewString()}
	}
}

func (m *Machine) attemptID() string {
	if m.current == nil {
		return ""
	}
	return m.current.id
}

func (m *Machine) record(fn func(Journal) error) {
	if m.journal == nil {
		return
	}
	if err := fn(m.journal); err != nil {
		slog.Warn("journal_write_failed", "attempt_id", m.attemptID(), "error", err)
	}
}
