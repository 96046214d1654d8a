package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fly-io/update-agent/pkg/metrics"
)

// Coordinator is the record shared by the state machine and the command
// source: the current state plus one pending flag per signal, all guarded by
// a single mutex and condition variable.
//
// A signal is accepted only while the machine sits in the state that signal
// advances, and every state change clears all pending flags, so a flag can
// never outlive the state it was raised for.
type Coordinator struct {
	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	pending [numSignals]bool

	metrics metrics.Metrics
}

// NewCoordinator returns a coordinator in Idle with nothing pending.
func NewCoordinator(m metrics.Metrics) *Coordinator {
	if m == nil {
		m = metrics.Noop{}
	}
	c := &Coordinator{state: StateIdle, metrics: m}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether sig is raised and not yet consumed.
func (c *Coordinator) Pending(sig Signal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sig.valid() && c.pending[sig]
}

// Raise records an operator request. Repeated raises before consumption
// collapse into one. It returns false when the machine is not in the state
// sig advances, in which case the request is discarded.
func (c *Coordinator) Raise(sig Signal) bool {
	if !sig.valid() {
		return false
	}

	c.mu.Lock()
	state := c.state
	accepted := state == sig.Gate()
	if accepted {
		c.pending[sig] = true
		c.cond.Broadcast()
	}
	c.mu.Unlock()

	if accepted {
		slog.Info("signal_accepted", "signal", sig.String(), "state", state)
		c.metrics.IncSignal(sig.String(), "accepted")
	} else {
		slog.Warn("signal_ignored", "signal", sig.String(), "state", state, "accepted_in", sig.Gate())
		c.metrics.IncSignal(sig.String(), "ignored")
	}
	return accepted
}

// await blocks until sig is pending, timeout elapses, or ctx ends.
//
// When sig arrives the flag is consumed and the state moves to sig.Next()
// in the same critical section. When the timeout elapses first the state
// falls back to Idle and await returns false. A timeout <= 0 waits forever.
// On ctx cancellation the state is left unchanged and ctx.Err() is returned.
func (c *Coordinator) await(ctx context.Context, sig Signal, timeout time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != sig.Gate() {
		return false, fmt.Errorf("cannot await %s in state %s", sig, c.state)
	}

	expired := false
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			c.mu.Lock()
			expired = true
			c.mu.Unlock()
			c.cond.Broadcast()
		})
		defer timer.Stop()
	}

	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	for !c.pending[sig] && !expired && ctx.Err() == nil {
		c.cond.Wait()
	}

	switch {
	case c.pending[sig]:
		c.moveLocked(sig.Next())
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		c.moveLocked(StateIdle)
		return false, nil
	}
}

// moveTo changes state from -> to, returning false if the machine is not
// in from.
func (c *Coordinator) moveTo(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.moveLocked(to)
	return true
}

func (c *Coordinator) moveLocked(to State) {
	c.state = to
	c.pending = [numSignals]bool{}
	c.cond.Broadcast()
}
