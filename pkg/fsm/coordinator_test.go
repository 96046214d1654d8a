package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token string
		want  Signal
		ok    bool
	}{
		{"--start-update", SignalStartUpdate, true},
		{"--verify", SignalVerify, true},
		{"--apply", SignalApply, true},
		{"--reboot", SignalReboot, true},
		{"--REBOOT", 0, false},
		{"reboot", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseToken(tt.token)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseToken(%q) = %v, %v; want %v, %v", tt.token, got, ok, tt.want, tt.ok)
			}
			if ok && got.Token() != tt.token {
				t.Errorf("Token() = %q, want %q", got.Token(), tt.token)
			}
		})
	}
}

func TestCoordinator_StartsIdle(t *testing.T) {
	c := NewCoordinator(nil)
	if c.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", c.State())
	}
	for sig := Signal(0); sig < numSignals; sig++ {
		if c.Pending(sig) {
			t.Errorf("%s pending at start", sig)
		}
	}
}

// Setting any flag other than the one that advances S must leave S alone.
func TestCoordinator_UnrelatedSignalsIgnored(t *testing.T) {
	states := []State{StateIdle, StateDownloading, StateVerifying, StateApplying, StateRebooting}

	for _, s := range states {
		for sig := Signal(0); sig < numSignals; sig++ {
			if sig.Gate() == s {
				continue
			}
			t.Run(string(s)+"/"+sig.String(), func(t *testing.T) {
				c := NewCoordinator(nil)
				c.state = s

				if c.Raise(sig) {
					t.Errorf("Raise(%s) accepted in %s", sig, s)
				}
				if c.Pending(sig) {
					t.Errorf("%s left pending in %s", sig, s)
				}
				if c.State() != s {
					t.Errorf("state changed to %s", c.State())
				}
			})
		}
	}
}

func TestCoordinator_RaiseCollapsesAndConsumesOnce(t *testing.T) {
	c := NewCoordinator(nil)

	if !c.Raise(SignalStartUpdate) || !c.Raise(SignalStartUpdate) {
		t.Fatal("start-update should be accepted in idle")
	}

	ok, err := c.await(context.Background(), SignalStartUpdate, 0)
	if err != nil || !ok {
		t.Fatalf("await = %v, %v", ok, err)
	}
	if c.State() != StateDownloading {
		t.Fatalf("state = %s, want downloading", c.State())
	}
	if c.Pending(SignalStartUpdate) {
		t.Error("start-update still pending after consumption")
	}

	// The collapsed second raise must not carry over into a later Idle.
	c.moveTo(StateDownloading, StateIdle)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c.await(ctx, SignalStartUpdate, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected idle wait to block, got %v", err)
	}
}

func TestCoordinator_AwaitWakesOnRaise(t *testing.T) {
	c := NewCoordinator(nil)
	c.state = StateVerifying

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Raise(SignalApply)
	}()

	ok, err := c.await(context.Background(), SignalApply, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("await = %v, %v", ok, err)
	}
	if c.State() != StateApplying {
		t.Errorf("state = %s, want applying", c.State())
	}
}

func TestCoordinator_AwaitTimeoutFallsBackToIdle(t *testing.T) {
	c := NewCoordinator(nil)
	c.state = StateDownloading

	start := time.Now()
	ok, err := c.await(context.Background(), SignalVerify, 40*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("await should report timeout")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestCoordinator_AwaitCancelled(t *testing.T) {
	c := NewCoordinator(nil)
	c.state = StateApplying

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	ok, err := c.await(ctx, SignalReboot, time.Hour)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("await = %v, %v; want false, context.Canceled", ok, err)
	}
	if c.State() != StateApplying {
		t.Errorf("state = %s, cancellation must not change state", c.State())
	}
}

func TestCoordinator_AwaitWrongState(t *testing.T) {
	c := NewCoordinator(nil)
	if _, err := c.await(context.Background(), SignalReboot, time.Second); err == nil {
		t.Error("expected error awaiting reboot in idle")
	}
}

func TestCoordinator_TransitionClearsPending(t *testing.T) {
	c := NewCoordinator(nil)
	c.state = StateDownloading

	c.Raise(SignalVerify)
	if !c.moveTo(StateDownloading, StateIdle) {
		t.Fatal("moveTo failed")
	}
	if c.Pending(SignalVerify) {
		t.Error("verify survived a state change")
	}
	if c.moveTo(StateDownloading, StateIdle) {
		t.Error("moveTo from a state the machine is not in should fail")
	}
}

func TestCoordinator_ConcurrentRaises(t *testing.T) {
	c := NewCoordinator(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Raise(Signal(i % int(numSignals)))
		}(i)
	}
	wg.Wait()

	if !c.Pending(SignalStartUpdate) {
		t.Error("start-update should be pending")
	}
	for _, sig := range []Signal{SignalVerify, SignalApply, SignalReboot} {
		if c.Pending(sig) {
			t.Errorf("%s should have been ignored in idle", sig)
		}
	}
}

func TestSignal_Unknown(t *testing.T) {
	for _, sig := range []Signal{-1, numSignals, 42} {
		if sig.Gate() != "" || sig.Next() != "" || sig.Token() != "" || sig.String() != "unknown" {
			t.Errorf("signal %d: gate=%q next=%q token=%q name=%q", int(sig), sig.Gate(), sig.Next(), sig.Token(), sig.String())
		}

		c := NewCoordinator(nil)
		if c.Raise(sig) {
			t.Errorf("Raise(%d) accepted", int(sig))
		}
		if _, err := c.await(context.Background(), sig, time.Millisecond); err == nil {
			t.Errorf("await(%d) should fail", int(sig))
		}
	}
}
