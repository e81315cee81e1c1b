package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/runctl/internal/api"
	"github.com/runforge/runctl/internal/types"
)

func TestCollectSinglePagePassesThroughPagination(t *testing.T) {
	source := &fakeSource{
		pages: map[string]*types.EventsPage{
			"": {
				Events:  []types.Event{refEvent("evt-1", "run-a", "fn-1", "svc.jobs.sweep")},
				HasMore: true,
			},
		},
		runs: map[string]*types.Run{"run-a": mkRun("run-a", types.StatusRunning)},
	}

	collector := NewCollector(newTestEngine(source, 0))
	result, err := collector.Collect(context.Background(), CollectOptions{
		Options: Options{Limit: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"run-a"}, runIDs(result.Runs))
	assert.True(t, result.HasMore)
}

func TestCollectFetchAllExhaustsUpstream(t *testing.T) {
	source := &fakeSource{
		pages: map[string]*types.EventsPage{
			"": {
				Events: []types.Event{
					refEvent("evt-1", "run-a", "fn-1", "svc.jobs.sweep"),
					refEvent("evt-2", "run-b", "fn-1", "svc.jobs.sweep"),
				},
				HasMore: true,
				Cursor:  "c1",
			},
			"c1": {Events: []types.Event{refEvent("evt-3", "run-c", "fn-1", "svc.jobs.sweep")}},
		},
		runs: map[string]*types.Run{
			"run-a": mkRun("run-a", types.StatusRunning),
			"run-b": mkRun("run-b", types.StatusRunning),
			"run-c": mkRun("run-c", types.StatusRunning),
		},
	}

	var messages []string
	collector := NewCollector(newTestEngine(source, 0))
	result, err := collector.Collect(context.Background(), CollectOptions{
		FetchAll:   true,
		OnProgress: func(m string) { messages = append(messages, m) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"run-a", "run-b", "run-c"}, runIDs(result.Runs))
	assert.False(t, result.HasMore)
	assert.Empty(t, result.NextCursor)
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0], "collected")
}

func TestCollectFetchAllStopsAtSafetyCeiling(t *testing.T) {
	// An upstream that always reports more data must terminate at exactly
	// the safety ceiling with HasMore forced to true.
	var counter int
	source := &fakeSource{}
	source.pageFn = func(opts api.ListEventsOpts) (*types.EventsPage, error) {
		events := make([]types.Event, 0, api.MaxPageSize)
		for i := 0; i < api.MaxPageSize; i++ {
			counter++
			id := fmt.Sprintf("run-%06d", counter)
			events = append(events, refEvent("evt-"+id, id, "fn-1", "svc.jobs.sweep"))
		}
		return &types.EventsPage{
			Events:  events,
			HasMore: true,
			Cursor:  fmt.Sprintf("c-%d", counter),
		}, nil
	}
	source.runFn = func(runID string) (*types.Run, error) {
		return mkRun(runID, types.StatusRunning), nil
	}

	var messages []string
	collector := NewCollector(newTestEngine(source, 0))
	result, err := collector.Collect(context.Background(), CollectOptions{
		FetchAll:   true,
		OnProgress: func(m string) { messages = append(messages, m) },
	})
	require.NoError(t, err)

	assert.Len(t, result.Runs, CollectCeiling)
	assert.True(t, result.HasMore)
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "safety ceiling")

	// No duplicate run IDs across collected pages.
	seen := make(map[string]bool)
	for _, run := range result.Runs {
		assert.False(t, seen[run.ID], "duplicate run %s", run.ID)
		seen[run.ID] = true
	}
}

func TestCollectFetchAllStopsOnNonAdvancingCursor(t *testing.T) {
	// An upstream that keeps reporting more data behind a cursor that
	// never changes must terminate instead of looping, and keep the
	// pagination state so the user sees the listing is incomplete.
	source := &fakeSource{
		pages: map[string]*types.EventsPage{
			"": {
				Events:  []types.Event{refEvent("evt-1", "run-a", "fn-1", "svc.jobs.sweep")},
				HasMore: true,
				Cursor:  "stuck",
			},
			"stuck": {
				Events:  []types.Event{refEvent("evt-1", "run-a", "fn-1", "svc.jobs.sweep")},
				HasMore: true,
				Cursor:  "stuck",
			},
		},
		runs: map[string]*types.Run{"run-a": mkRun("run-a", types.StatusRunning)},
	}

	collector := NewCollector(newTestEngine(source, 0))
	result, err := collector.Collect(context.Background(), CollectOptions{FetchAll: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"run-a"}, runIDs(result.Runs))
	assert.True(t, result.HasMore)
	assert.Equal(t, "stuck", result.NextCursor)
}

func TestCollectPropagatesEngineFailure(t *testing.T) {
	source := &fakeSource{listErr: assert.AnError}
	collector := NewCollector(newTestEngine(source, 0))

	_, err := collector.Collect(context.Background(), CollectOptions{FetchAll: true})
	require.Error(t, err)
}
