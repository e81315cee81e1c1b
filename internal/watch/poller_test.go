package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/runctl/internal/types"
)

// scriptedSource replays a fixed sequence of observations, repeating the
// last one once the script is exhausted.
type scriptedSource struct {
	mu       sync.Mutex
	statuses []types.RunStatus
	runSets  [][]types.Run
	err      error
	calls    int
}

func (s *scriptedSource) GetRun(_ context.Context, runID string) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.calls++
	return &types.Run{ID: runID, Status: s.statuses[idx], StartedAt: time.Now()}, nil
}

func (s *scriptedSource) GetEventRuns(_ context.Context, _ string) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.runSets) {
		idx = len(s.runSets) - 1
	}
	s.calls++
	return s.runSets[idx], nil
}

func TestWatchRunRendersOncePerStatusChange(t *testing.T) {
	source := &scriptedSource{statuses: []types.RunStatus{
		types.StatusRunning,
		types.StatusRunning,
		types.StatusCompleted,
	}}

	var renders []types.RunStatus
	outcome, err := NewPoller(source).Watch(context.Background(), RunTarget("run-a"), Options{
		PollInterval: time.Millisecond,
		OnRender: func(s Snapshot) {
			renders = append(renders, s.Runs[0].Status)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	// Two distinct statuses observed, so exactly two renders.
	assert.Equal(t, []types.RunStatus{types.StatusRunning, types.StatusCompleted}, renders)
	// The poller stops within one tick of observing the terminal status.
	assert.Equal(t, 3, source.calls)
}

func TestWatchEventWaitsForAllRunsTerminal(t *testing.T) {
	a := func(status types.RunStatus) types.Run {
		return types.Run{ID: "run-a", Status: status, StartedAt: time.Now()}
	}
	b := func(status types.RunStatus) types.Run {
		return types.Run{ID: "run-b", Status: status, StartedAt: time.Now()}
	}
	source := &scriptedSource{runSets: [][]types.Run{
		{},                        // no runs yet: keep polling
		{a(types.StatusRunning)},  // run count changed: render
		{a(types.StatusCompleted), b(types.StatusRunning)}, // still one non-terminal
		{a(types.StatusCompleted), b(types.StatusFailed)},  // all terminal: stop
	}}

	renders := 0
	outcome, err := NewPoller(source).Watch(context.Background(), EventTarget("evt-1"), Options{
		PollInterval: time.Millisecond,
		OnRender:     func(Snapshot) { renders++ },
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 4, renders) // every observation differed from the previous one
	assert.Equal(t, 4, source.calls)
}

func TestWatchTimesOut(t *testing.T) {
	source := &scriptedSource{statuses: []types.RunStatus{types.StatusRunning}}

	outcome, err := NewPoller(source).Watch(context.Background(), RunTarget("run-a"), Options{
		PollInterval: time.Millisecond,
		MaxDuration:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
}

func TestWatchLookupFailureErrors(t *testing.T) {
	source := &scriptedSource{err: errors.New("lookup failed")}

	_, err := NewPoller(source).Watch(context.Background(), RunTarget("run-a"), Options{
		PollInterval: time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run run-a")
}

// signallingSource reports the first observation, then stays Running.
type signallingSource struct {
	once    sync.Once
	started chan struct{}
}

func (s *signallingSource) GetRun(_ context.Context, runID string) (*types.Run, error) {
	s.once.Do(func() { close(s.started) })
	return &types.Run{ID: runID, Status: types.StatusRunning, StartedAt: time.Now()}, nil
}

func (s *signallingSource) GetEventRuns(_ context.Context, _ string) ([]types.Run, error) {
	return nil, nil
}

func TestWatchSecondConcurrentWatchFastFails(t *testing.T) {
	source := &signallingSource{started: make(chan struct{})}
	poller := NewPoller(source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = poller.Watch(ctx, RunTarget("run-a"), Options{PollInterval: time.Millisecond})
	}()

	// The poller is claimed before the first observation, so once the
	// first tick is seen a second watch must fast-fail.
	<-source.started
	_, err := poller.Watch(ctx, RunTarget("run-b"), Options{PollInterval: time.Millisecond})
	assert.ErrorIs(t, err, ErrWatchActive)

	cancel()
	<-done
}

func TestWatchCancelledContextStopsCleanly(t *testing.T) {
	source := &scriptedSource{statuses: []types.RunStatus{types.StatusRunning}}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := NewPoller(source).Watch(ctx, RunTarget("run-a"), Options{
		PollInterval: 500 * time.Millisecond,
	})
	require.ErrorIs(t, err, context.Canceled)
}
