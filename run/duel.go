package run

import (
	"context"
	"fmt"
	"time"

	"github.com/agentduel/agentduel/providers/factory"
	"github.com/agentduel/agentduel/stream"
)

// Side names one lane of a duel.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Duel runs two providers against the same goal in parallel. The two runners
// are fully isolated: separate sessions, separate push channels, separate
// step state. Nothing ties their progress together except the shared goal.
type Duel struct {
	goal    string
	left    *Runner
	right   *Runner
	started time.Time
}

// NewDuel builds the two runners from a shared base config. The base config's
// Provider field is ignored; left and right name the competing providers.
// Session caching is deliberately per-side so the lanes never share a
// browser.
func NewDuel(goal, leftProvider, rightProvider string, base Config) (*Duel, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal is required")
	}
	build := func(side Side, provider string) (*Runner, error) {
		interp, err := factory.New(provider)
		if err != nil {
			return nil, fmt.Errorf("%s side: %w", side, err)
		}
		cfg := base
		cfg.Provider = provider
		cfg.Goal = goal
		cfg.Interpreter = interp
		cfg.RunKey = fmt.Sprintf("%s:%s:%s", side, provider, goal)
		return New(cfg)
	}

	left, err := build(SideLeft, leftProvider)
	if err != nil {
		return nil, err
	}
	right, err := build(SideRight, rightProvider)
	if err != nil {
		return nil, err
	}
	return &Duel{goal: goal, left: left, right: right}, nil
}

func (d *Duel) Goal() string { return d.goal }

// Runner returns the runner for one side.
func (d *Duel) Runner(side Side) *Runner {
	if side == SideRight {
		return d.right
	}
	return d.left
}

// Start launches both runners concurrently.
func (d *Duel) Start(ctx context.Context) {
	d.started = time.Now()
	go d.left.Start(ctx)
	go d.right.Start(ctx)
}

// Stop detaches both runners.
func (d *Duel) Stop() {
	d.left.Stop()
	d.right.Stop()
}

// Wait blocks until both runs settle or the context is cancelled.
func (d *Duel) Wait(ctx context.Context) error {
	for _, done := range []<-chan struct{}{d.left.Done(), d.right.Done()} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Snapshots returns the current projection of each side.
func (d *Duel) Snapshots() (left, right stream.Snapshot) {
	return d.left.Snapshot(), d.right.Snapshot()
}

// Uptime reports how long the duel has been running. Zero before Start.
func (d *Duel) Uptime() time.Duration {
	if d.started.IsZero() {
		return 0
	}
	return time.Since(d.started)
}
