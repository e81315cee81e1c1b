// Package watch repeatedly re-resolves a run, or an event's run set, until
// it reaches a terminal state, a timeout, or an error.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/runforge/runctl/internal/types"
)

// DefaultPollInterval is used when the caller gives no interval.
const DefaultPollInterval = 2 * time.Second

// ErrWatchActive is returned when a second watch is started on a Poller
// that already has one running. Watches fast-fail rather than queue.
var ErrWatchActive = errors.New("watch already in progress")

// Outcome is the terminal result of a watch.
type Outcome string

const (
	// OutcomeCompleted means the target reached a terminal status.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTimedOut means the configured maximum duration elapsed first.
	OutcomeTimedOut Outcome = "timed-out"
)

// Target selects what to watch: a single run, or every run of an event.
type Target struct {
	runID   string
	eventID string
}

// RunTarget watches a single run until its status is terminal.
func RunTarget(runID string) Target {
	return Target{runID: runID}
}

// EventTarget watches the run set of an event until at least one run
// exists and none are left in a non-terminal state.
func EventTarget(eventID string) Target {
	return Target{eventID: eventID}
}

// Snapshot is one observation of the target, passed to OnRender.
type Snapshot struct {
	Runs       []types.Run
	ObservedAt time.Time
}

// Options configure one watch.
type Options struct {
	// PollInterval is the tick period. Defaults to DefaultPollInterval.
	PollInterval time.Duration

	// MaxDuration bounds the whole watch. Zero means no timeout.
	MaxDuration time.Duration

	// OnRender is invoked when the observed status set changes since the
	// previous tick. Unchanged ticks render nothing.
	OnRender func(Snapshot)
}

// Source is the lookup slice of the API client the poller uses.
type Source interface {
	GetRun(ctx context.Context, runID string) (*types.Run, error)
	GetEventRuns(ctx context.Context, eventID string) ([]types.Run, error)
}

// Poller drives a watch loop. Only one watch may be active per instance.
type Poller struct {
	source Source
	now    func() time.Time
	active atomic.Bool
}

// NewPoller creates a Poller over the given source.
func NewPoller(source Source) *Poller {
	return &Poller{source: source, now: time.Now}
}

// Watch polls the target until it reaches a terminal state, the timeout
// elapses, the context is cancelled, or a lookup fails. The timeout is
// checked every tick, independent of status changes.
func (p *Poller) Watch(ctx context.Context, target Target, opts Options) (Outcome, error) {
	if !p.active.CompareAndSwap(false, true) {
		return "", ErrWatchActive
	}
	defer p.active.Store(false)

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := p.now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastKey := ""
	for {
		runs, err := p.observe(ctx, target)
		if err != nil {
			return "", fmt.Errorf("watching %s: %w", target.describe(), err)
		}

		if key := stateKey(runs); key != lastKey {
			lastKey = key
			if opts.OnRender != nil {
				opts.OnRender(Snapshot{Runs: runs, ObservedAt: p.now()})
			}
		}

		if settled(runs) {
			return OutcomeCompleted, nil
		}
		if opts.MaxDuration > 0 && p.now().Sub(start) >= opts.MaxDuration {
			return OutcomeTimedOut, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) observe(ctx context.Context, target Target) ([]types.Run, error) {
	if target.runID != "" {
		run, err := p.source.GetRun(ctx, target.runID)
		if err != nil {
			return nil, err
		}
		return []types.Run{*run}, nil
	}
	return p.source.GetEventRuns(ctx, target.eventID)
}

func (t Target) describe() string {
	if t.runID != "" {
		return "run " + t.runID
	}
	return "event " + t.eventID
}

// stateKey fingerprints an observation: the run count plus each run's
// status, so a render happens exactly when something visible changed.
func stateKey(runs []types.Run) string {
	parts := make([]string, 0, len(runs)+1)
	parts = append(parts, fmt.Sprintf("%d", len(runs)))
	for _, run := range runs {
		parts = append(parts, run.ID+"="+string(run.Status))
	}
	sort.Strings(parts[1:])
	return strings.Join(parts, ";")
}

// settled reports whether the watch is done: at least one run exists and
// none are in a non-terminal state.
func settled(runs []types.Run) bool {
	if len(runs) == 0 {
		return false
	}
	for _, run := range runs {
		if !run.Status.Terminal() {
			return false
		}
	}
	return true
}
