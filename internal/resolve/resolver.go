// Package resolve turns user-supplied run identifiers, full or partial,
// into canonical run records.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/runforge/runctl/internal/discovery"
	"github.com/runforge/runctl/internal/types"
)

// searchWindow caps how many recent discovery records a partial-ID search
// scans.
const searchWindow = 200

// NotFoundError means the identifier matched no run. It is always
// recoverable at the CLI boundary; every internal failure mode of the
// convenience search collapses into it.
type NotFoundError struct {
	Identifier string
	Cause      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no run found matching %q", e.Identifier)
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// RunGetter is the point-lookup slice of the API client.
type RunGetter interface {
	GetRun(ctx context.Context, runID string) (*types.Run, error)
}

// Lister is the discovery search used for partial-ID candidates.
type Lister interface {
	List(ctx context.Context, opts discovery.Options) (*discovery.Result, error)
}

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Run         *types.Run
	RunID       string
	UsedPartial bool
}

// Resolver resolves identifiers against the API and the discovery feed.
type Resolver struct {
	getter RunGetter
	lister Lister
}

// NewResolver creates a Resolver.
func NewResolver(getter RunGetter, lister Lister) *Resolver {
	return &Resolver{getter: getter, lister: lister}
}

// Resolve determines the canonical run for an identifier. An identifier
// with the canonical run-ID shape gets a direct lookup, and a lookup
// failure is final: a well-formed ID that 404s is not retried via search.
// Anything else is treated as a suffix to search for among the most
// recent discovery records; a candidate whose own point lookup fails is
// skipped rather than aborting, tolerating transient inconsistency
// between the discovery feed and the point-lookup store.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Resolution, error) {
	identifier = strings.ToUpper(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, &NotFoundError{Identifier: identifier}
	}

	if types.IsRunID(identifier) {
		run, err := r.getter.GetRun(ctx, identifier)
		if err != nil {
			return nil, &NotFoundError{Identifier: identifier, Cause: err}
		}
		return &Resolution{Run: run, RunID: run.ID}, nil
	}

	result, err := r.lister.List(ctx, discovery.Options{Limit: searchWindow})
	if err != nil {
		return nil, &NotFoundError{Identifier: identifier, Cause: err}
	}

	for _, candidate := range result.Runs {
		if !strings.HasSuffix(strings.ToUpper(candidate.ID), identifier) {
			continue
		}
		run, err := r.getter.GetRun(ctx, candidate.ID)
		if err != nil {
			continue
		}
		return &Resolution{Run: run, RunID: run.ID, UsedPartial: true}, nil
	}
	return nil, &NotFoundError{Identifier: identifier}
}
