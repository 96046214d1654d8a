package fsm

import (
	"context"

	"github.com/fly-io/update-agent/pkg/db"
	"github.com/fly-io/update-agent/pkg/errors"
)

// State is the current phase of the update cycle
type State string

// State names
const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateApplying    State = "applying"
	StateRebooting   State = "rebooting"
)

// Signal is an operator request to advance to the next state
type Signal int

const (
	SignalStartUpdate Signal = iota
	SignalVerify
	SignalApply
	SignalReboot

	numSignals
)

// Command tokens accepted from the operator
const (
	TokenStartUpdate = "--start-update"
	TokenVerify      = "--verify"
	TokenApply       = "--apply"
	TokenReboot      = "--reboot"
)

var signalTable = [numSignals]struct {
	name  string
	token string
	gate  State
	next  State
}{
	SignalStartUpdate: {"start_update", TokenStartUpdate, StateIdle, StateDownloading},
	SignalVerify:      {"verify", TokenVerify, StateDownloading, StateVerifying},
	SignalApply:       {"apply", TokenApply, StateVerifying, StateApplying},
	SignalReboot:      {"reboot", TokenReboot, StateApplying, StateRebooting},
}

func (s Signal) valid() bool { return s >= 0 && s < numSignals }

func (s Signal) String() string {
	if !s.valid() {
		return "unknown"
	}
	return signalTable[s].name
}

// Token returns the command-line token that raises s.
func (s Signal) Token() string {
	if !s.valid() {
		return ""
	}
	return signalTable[s].token
}

// Gate is the only state in which s is accepted, or "" for an unknown signal.
func (s Signal) Gate() State {
	if !s.valid() {
		return ""
	}
	return signalTable[s].gate
}

// Next is the state s advances to, or "" for an unknown signal.
func (s Signal) Next() State {
	if !s.valid() {
		return ""
	}
	return signalTable[s].next
}

// ParseToken maps a command token to its signal.
func ParseToken(token string) (Signal, bool) {
	for sig := Signal(0); sig < numSignals; sig++ {
		if signalTable[sig].token == token {
			return sig, true
		}
	}
	return 0, false
}

// ErrVerification is recorded when the integrity check rejects an artifact.
var ErrVerification = errors.New("integrity verification failed")

// ArtifactSource fetches the raw bytes of a named artifact. Missing or empty
// artifacts are errors; success always carries a non-empty buffer.
type ArtifactSource interface {
	Fetch(ctx context.Context, identity string) ([]byte, error)
}

// IntegrityChecker is a pure, deterministic check of artifact bytes.
type IntegrityChecker interface {
	Verify(data []byte) bool
}

// ApplyBackend writes verified content to persistent storage.
type ApplyBackend interface {
	Apply(ctx context.Context, data []byte) error
}

// Rebooter performs the reboot that activates an applied update.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Journal records attempt progress. It is write-only from the machine's
// point of view.
type Journal interface {
	Create(a *db.Attempt) error
	UpdateStatus(id, status, errorMessage string) error
	SetSize(id string, size int64) error
}
