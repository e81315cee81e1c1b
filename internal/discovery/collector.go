package discovery

import (
	"context"
	"fmt"

	"github.com/runforge/runctl/internal/api"
	"github.com/runforge/runctl/internal/types"
)

// CollectCeiling is the hard cap on runs gathered in fetch-all mode.
// Without it, an unranged fetch-all against unbounded history could loop
// indefinitely.
const CollectCeiling = 1000

// CollectOptions extend a discovery search with the user-facing
// pagination contract.
type CollectOptions struct {
	Options

	// FetchAll keeps requesting full upstream pages until the events
	// source is exhausted or CollectCeiling is reached.
	FetchAll bool

	// OnProgress receives human-readable progress messages during
	// fetch-all collection.
	OnProgress func(message string)
}

// CollectResult is the stable result shape exposed to callers.
type CollectResult struct {
	Runs       []types.Run
	HasMore    bool
	NextCursor string
}

// Collector wraps the Engine with the bounded-page / fetch-all contract.
type Collector struct {
	engine *Engine
}

// NewCollector creates a Collector over the given engine.
func NewCollector(engine *Engine) *Collector {
	return &Collector{engine: engine}
}

// Collect gathers runs in one of two modes. Single-page mode issues
// exactly one engine call and returns its pagination state verbatim.
// Fetch-all mode loops over full upstream pages until the events source
// is exhausted or CollectCeiling is reached; hitting the ceiling forces
// HasMore=true regardless of the upstream signal.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) (*CollectResult, error) {
	if !opts.FetchAll {
		result, err := c.engine.List(ctx, opts.Options)
		if err != nil {
			return nil, err
		}
		return &CollectResult{
			Runs:       result.Runs,
			HasMore:    result.EventsHasMore,
			NextCursor: result.EventsCursor,
		}, nil
	}

	pageOpts := opts.Options
	pageOpts.Limit = api.MaxPageSize

	seen := make(map[string]bool)
	var all []types.Run
	cursor := opts.Cursor
	for {
		pageOpts.Cursor = cursor
		result, err := c.engine.List(ctx, pageOpts)
		if err != nil {
			return nil, err
		}
		for _, run := range result.Runs {
			if seen[run.ID] {
				continue
			}
			seen[run.ID] = true
			all = append(all, run)
		}
		c.progress(opts, fmt.Sprintf("collected %d runs...", len(all)))

		if len(all) >= CollectCeiling {
			all = all[:CollectCeiling]
			c.progress(opts, fmt.Sprintf("stopped at the %d-run safety ceiling; more runs may exist upstream", CollectCeiling))
			return &CollectResult{Runs: all, HasMore: true, NextCursor: result.EventsCursor}, nil
		}
		if !result.EventsHasMore || result.EventsCursor == "" {
			return &CollectResult{Runs: all}, nil
		}
		// A cursor that never advances would loop forever; treat it as
		// a broken upstream and stop with the pagination state intact.
		if result.EventsCursor == cursor {
			return &CollectResult{Runs: all, HasMore: true, NextCursor: cursor}, nil
		}
		cursor = result.EventsCursor
	}
}

func (c *Collector) progress(opts CollectOptions, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(message)
	}
}
