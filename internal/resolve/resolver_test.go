package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/runctl/internal/discovery"
	"github.com/runforge/runctl/internal/types"
)

const (
	fullID  = "01HV9Z3F8NQ2M4P6RKED1TV841" // canonical 26-char shape
	partial = "RKED1TV841"
)

type fakeGetter struct {
	runs    map[string]*types.Run
	errs    map[string]error
	lookups []string
}

func (f *fakeGetter) GetRun(_ context.Context, runID string) (*types.Run, error) {
	f.lookups = append(f.lookups, runID)
	if err, ok := f.errs[runID]; ok {
		return nil, err
	}
	if run, ok := f.runs[runID]; ok {
		copied := *run
		return &copied, nil
	}
	return nil, errors.New("not found")
}

type fakeLister struct {
	result *discovery.Result
	err    error
	calls  int
}

func (f *fakeLister) List(_ context.Context, opts discovery.Options) (*discovery.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func mkRun(id string) *types.Run {
	return &types.Run{ID: id, Status: types.StatusRunning, StartedAt: time.Now()}
}

func TestResolveFullIDUsesDirectLookup(t *testing.T) {
	getter := &fakeGetter{runs: map[string]*types.Run{fullID: mkRun(fullID)}}
	lister := &fakeLister{}

	res, err := NewResolver(getter, lister).Resolve(context.Background(), fullID)
	require.NoError(t, err)

	assert.Equal(t, fullID, res.RunID)
	assert.False(t, res.UsedPartial)
	assert.Zero(t, lister.calls, "full-ID resolution must never invoke the search path")
}

func TestResolveFullIDLookupFailureIsNotFound(t *testing.T) {
	getter := &fakeGetter{errs: map[string]error{fullID: errors.New("boom")}}
	lister := &fakeLister{}

	_, err := NewResolver(getter, lister).Resolve(context.Background(), fullID)
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	// A well-formed ID that fails lookup is not retried via search.
	assert.Zero(t, lister.calls)
}

func TestResolvePartialSuffixMatch(t *testing.T) {
	other := "01HV9Z3F8NQ2M4P6Q8R0S1T3V5"
	getter := &fakeGetter{runs: map[string]*types.Run{fullID: mkRun(fullID), other: mkRun(other)}}
	lister := &fakeLister{result: &discovery.Result{Runs: []types.Run{*mkRun(other), *mkRun(fullID)}}}

	res, err := NewResolver(getter, lister).Resolve(context.Background(), partial)
	require.NoError(t, err)

	assert.Equal(t, fullID, res.RunID)
	assert.True(t, res.UsedPartial)
	assert.Equal(t, 1, lister.calls)
}

func TestResolvePartialIsCaseInsensitive(t *testing.T) {
	getter := &fakeGetter{runs: map[string]*types.Run{fullID: mkRun(fullID)}}
	lister := &fakeLister{result: &discovery.Result{Runs: []types.Run{*mkRun(fullID)}}}

	res, err := NewResolver(getter, lister).Resolve(context.Background(), "rked1tv841")
	require.NoError(t, err)
	assert.Equal(t, fullID, res.RunID)
}

func TestResolvePartialSkipsFailingCandidates(t *testing.T) {
	// Two candidates share the suffix; the first's point lookup fails and
	// the scan continues instead of aborting.
	first := "01HV9Z3F8NQ2M4P6AKED1TV841"
	getter := &fakeGetter{
		runs: map[string]*types.Run{fullID: mkRun(fullID)},
		errs: map[string]error{first: errors.New("transient")},
	}
	lister := &fakeLister{result: &discovery.Result{Runs: []types.Run{*mkRun(first), *mkRun(fullID)}}}

	res, err := NewResolver(getter, lister).Resolve(context.Background(), "KED1TV841")
	require.NoError(t, err)
	assert.Equal(t, fullID, res.RunID)
	assert.Equal(t, []string{first, fullID}, getter.lookups)
}

func TestResolveEmptyIdentifier(t *testing.T) {
	_, err := NewResolver(&fakeGetter{}, &fakeLister{}).Resolve(context.Background(), "   ")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveDiscoveryErrorIsNotFound(t *testing.T) {
	lister := &fakeLister{err: errors.New("discovery down")}

	_, err := NewResolver(&fakeGetter{}, lister).Resolve(context.Background(), partial)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveNoMatch(t *testing.T) {
	lister := &fakeLister{result: &discovery.Result{Runs: []types.Run{*mkRun("01HV9Z3F8NQ2M4P6Q8R0S1T3V5")}}}

	_, err := NewResolver(&fakeGetter{}, lister).Resolve(context.Background(), "ZZZZZZ")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
