// Package agent runs the update state machine next to its command source
// and any supporting services.
package agent

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-lived activity that stops when its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Agent owns the state machine, the command source and optional services.
type Agent struct {
	machine  Runner
	commands Runner
	services []Runner
}

// New creates an agent.
func New(machine, commands Runner, services ...Runner) *Agent {
	return &Agent{machine: machine, commands: commands, services: services}
}

// Run starts every activity and blocks until all of them have stopped.
// Cancelling ctx stops them all. The command source reaching end of input
// does not stop the machine; any activity returning an error does.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.machine.Run(gctx) })
	g.Go(func() error { return a.commands.Run(gctx) })
	for _, s := range a.services {
		g.Go(func() error { return s.Run(gctx) })
	}

	err := g.Wait()
	if err != nil {
		slog.Error("agent_stopped", "error", err)
		return err
	}
	slog.Info("agent_stopped")
	return nil
}
