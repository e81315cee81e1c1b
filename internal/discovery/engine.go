package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runforge/runctl/internal/api"
	"github.com/runforge/runctl/internal/observability"
	"github.com/runforge/runctl/internal/types"
)

const (
	// DefaultLimit is the result limit applied when the caller gives none.
	DefaultLimit = 20

	// chunkWidth is the width of one time chunk in the fan-out.
	chunkWidth = 12 * time.Hour

	// maxConcurrentChunks bounds simultaneous chunk requests so the
	// fan-out never overwhelms the upstream API.
	maxConcurrentChunks = 6

	// maxCursorPages bounds sequential cursor continuation.
	maxCursorPages = 20

	// candidateMultiple and maxCandidates derive the early-termination
	// ceiling for chunk merging: limit*candidateMultiple, capped.
	candidateMultiple = 5
	maxCandidates     = 1000

	// defaultStatusLookback is how far back a status-filtered search
	// reaches when no explicit window is given. Roughly six months.
	defaultStatusLookback = 24 * time.Hour * 182
)

// Source is the slice of the upstream API the engine consumes.
type Source interface {
	ListEvents(ctx context.Context, opts api.ListEventsOpts) (*types.EventsPage, error)
	GetRun(ctx context.Context, runID string) (*types.Run, error)
}

// Options filter and bound one discovery search.
type Options struct {
	// Status keeps only runs in this state. Status filtering is applied
	// after materialization, never on event names: an event implying
	// failure may be superseded by a later cancellation.
	Status types.RunStatus

	// Function is matched against the function ID (exact) and the
	// enriched function name (substring).
	Function string

	// After and Before bound the search window explicitly.
	After  time.Time
	Before time.Time

	// Hours is a lookback window from now, used when After/Before are unset.
	Hours int

	// Limit caps the returned run count.
	Limit int

	// Cursor continues a previous events listing.
	Cursor string
}

// Result is the outcome of one discovery search. EventsHasMore and
// EventsCursor describe the underlying *events* source, not whether runs
// were truncated; the Collector turns them into the user-facing
// pagination contract.
type Result struct {
	Runs          []types.Run
	FetchedAt     time.Time
	EventsHasMore bool
	EventsCursor  string
}

// EngineConfig tunes an Engine. The zero value is usable.
type EngineConfig struct {
	// Printer receives verbose debug output for absorbed transient
	// failures. Nil disables it.
	Printer *observability.Printer

	// StatusLookback overrides the default six-month window used when
	// only a status filter is given.
	StatusLookback time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine converts the paginated, time-bounded event stream into a
// deduplicated collection of resolved, enriched runs. Each Engine owns
// one Cache for the lifetime of a command invocation.
type Engine struct {
	source         Source
	cache          *Cache
	printer        *observability.Printer
	statusLookback time.Duration
	now            func() time.Time
}

// NewEngine creates an Engine over the given source.
func NewEngine(source Source, cfg EngineConfig) *Engine {
	e := &Engine{
		source:         source,
		cache:          NewCache(),
		printer:        cfg.Printer,
		statusLookback: cfg.StatusLookback,
		now:            cfg.Now,
	}
	if e.statusLookback <= 0 {
		e.statusLookback = defaultStatusLookback
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Cache returns the engine's enrichment cache for rendering.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// List runs one discovery search. Only the initial page fetch can fail;
// chunk requests, cursor pages, and per-run point lookups are absorbed as
// empty contributions.
func (e *Engine) List(ctx context.Context, opts Options) (*Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	after, before := e.window(opts)

	// A status filter is applied after materialization, so over-fetch
	// candidates to compensate for attrition.
	pageSize := limit
	if opts.Status != "" || pageSize > api.MaxPageSize {
		pageSize = api.MaxPageSize
	}

	listOpts := api.ListEventsOpts{
		Limit:          pageSize,
		Cursor:         opts.Cursor,
		ReceivedAfter:  after,
		ReceivedBefore: before,
	}
	initial, err := e.source.ListEvents(ctx, listOpts)
	if err != nil {
		// The one operation with no fallback.
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := initial.Events
	if opts.Status != "" {
		events = append(events, e.fetchChunks(ctx, after, before, limit)...)
	}

	hasMore, nextCursor, continued := e.followCursor(ctx, listOpts, initial)
	events = append(events, continued...)

	runs := e.materialize(ctx, events)

	filtered := make([]types.Run, 0, len(runs))
	for _, run := range runs {
		if matchesFilters(run, opts) {
			filtered = append(filtered, run)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return &Result{
		Runs:          filtered,
		FetchedAt:     e.now(),
		EventsHasMore: hasMore,
		EventsCursor:  nextCursor,
	}, nil
}

// window derives the search time bounds: explicit After/Before first,
// then Hours, then the wide status lookback. Without a status filter and
// without explicit bounds, the search stays unbounded (one page of recent
// events).
func (e *Engine) window(opts Options) (after, before time.Time) {
	if !opts.After.IsZero() || !opts.Before.IsZero() {
		return opts.After, opts.Before
	}
	if opts.Hours > 0 {
		return e.now().Add(-time.Duration(opts.Hours) * time.Hour), time.Time{}
	}
	if opts.Status != "" {
		return e.now().Add(-e.statusLookback), time.Time{}
	}
	return time.Time{}, time.Time{}
}

// fetchChunks splits [after, before) into fixed-width chunks and fetches
// them concurrently, at most maxConcurrentChunks at a time. A failed
// chunk becomes an empty contribution and never aborts its siblings.
// Results are merged in chunk order, so the outcome is deterministic even
// though completion order is not, and merging stops early once enough
// candidates have accumulated.
func (e *Engine) fetchChunks(ctx context.Context, after, before time.Time, limit int) []types.Event {
	if after.IsZero() {
		return nil
	}
	if before.IsZero() {
		before = e.now()
	}
	total := before.Sub(after)
	if total <= 0 {
		return nil
	}
	chunkCount := int((total + chunkWidth - 1) / chunkWidth)

	results := make([][]types.Event, chunkCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)
	for i := 0; i < chunkCount; i++ {
		start := after.Add(time.Duration(i) * chunkWidth)
		end := start.Add(chunkWidth)
		if end.After(before) {
			end = before
		}
		g.Go(func() error {
			page, err := e.source.ListEvents(gctx, api.ListEventsOpts{
				Limit:          api.MaxPageSize,
				ReceivedAfter:  start,
				ReceivedBefore: end,
			})
			if err != nil {
				e.printer.Debugf("chunk %d/%d (%s to %s) failed, treating as empty: %v",
					i+1, chunkCount, start.Format(time.RFC3339), end.Format(time.RFC3339), err)
				return nil
			}
			results[i] = page.Events
			return nil
		})
	}
	_ = g.Wait()

	ceiling := limit * candidateMultiple
	if ceiling > maxCandidates {
		ceiling = maxCandidates
	}

	var merged []types.Event
	for i, chunk := range results {
		if len(merged) >= ceiling {
			e.printer.Debugf("chunk merge stopped early at %d candidates (%d of %d chunks merged)",
				len(merged), i, chunkCount)
			break
		}
		merged = append(merged, chunk...)
	}
	return merged
}

// followCursor fetches continuation pages sequentially: upstream cursors
// are stateful and ordered, so no parallelism is possible here. It stops
// on an empty page, a repeated or absent cursor, a failed page, or the
// page bound, and reports the events source's final pagination state.
func (e *Engine) followCursor(ctx context.Context, base api.ListEventsOpts, initial *types.EventsPage) (hasMore bool, nextCursor string, events []types.Event) {
	hasMore = initial.HasMore
	nextCursor = initial.Cursor

	seen := make(map[string]bool)
	cursor := initial.Cursor
	for pages := 0; pages < maxCursorPages && cursor != "" && !seen[cursor]; pages++ {
		seen[cursor] = true
		base.Cursor = cursor
		page, err := e.source.ListEvents(ctx, base)
		if err != nil {
			e.printer.Debugf("cursor page failed, stopping continuation: %v", err)
			break
		}
		hasMore = page.HasMore
		nextCursor = page.Cursor
		cursor = page.Cursor
		if len(page.Events) == 0 {
			break
		}
		events = append(events, page.Events...)
	}
	return hasMore, nextCursor, events
}

// runRef is the loose shape of an event payload that references a run.
type runRef struct {
	RunID        string            `json:"run_id"`
	FunctionID   string            `json:"function_id"`
	FunctionName string            `json:"function_name"`
	Event        json.RawMessage   `json:"event"`
	Events       []json.RawMessage `json:"events"`
}

// parseRef extracts a run reference from an event payload, if present.
func parseRef(data json.RawMessage) (runRef, bool) {
	if len(data) == 0 {
		return runRef{}, false
	}
	var ref runRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return runRef{}, false
	}
	return ref, ref.RunID != ""
}

// extractInput pulls the original triggering payload out of a run
// reference. The assumed nesting convention is envelope -> data -> event
// (or first element of an events array) -> data. Upstream does not
// guarantee this shape, so extraction is best-effort: it reports absence
// instead of failing.
func extractInput(ref runRef) (json.RawMessage, bool) {
	envelope := ref.Event
	if envelope == nil && len(ref.Events) > 0 {
		envelope = ref.Events[0]
	}
	if envelope == nil {
		return nil, false
	}
	var inner struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(envelope, &inner); err != nil || len(inner.Data) == 0 {
		return nil, false
	}
	return inner.Data, true
}

// materialize resolves the merged event set into distinct runs. The first
// pass records, for each run, the function name and envelope of the first
// event that referenced it; the second pass point-looks-up every distinct
// run, merges in the enrichment, and stores it in the cache. A run whose
// lookup fails is skipped, not fatal to the batch.
func (e *Engine) materialize(ctx context.Context, events []types.Event) []types.Run {
	seeds := make(map[string]runRef)
	for _, event := range events {
		ref, ok := parseRef(event.Data)
		if !ok || ref.FunctionName == "" {
			continue
		}
		if _, dup := seeds[ref.RunID]; dup {
			continue // first event wins
		}
		seeds[ref.RunID] = ref
	}

	seenRunIDs := make(map[string]bool)
	var runs []types.Run
	for _, event := range events {
		ref, ok := parseRef(event.Data)
		if !ok || seenRunIDs[ref.RunID] {
			continue
		}
		seenRunIDs[ref.RunID] = true

		run, err := e.source.GetRun(ctx, ref.RunID)
		if err != nil {
			e.printer.Debugf("run %s lookup failed, skipping: %v", ref.RunID, err)
			continue
		}

		var enrichment Enrichment
		if seed, ok := seeds[run.ID]; ok {
			run.FunctionName = seed.FunctionName
			enrichment.FunctionName = seed.FunctionName
			if input, ok := extractInput(seed); ok {
				enrichment.Input = input
			}
		}
		e.cache.Put(run.ID, enrichment)
		runs = append(runs, *run)
	}
	return runs
}

// matchesFilters applies post-materialization filtering: status equality
// and function-ID exact or function-name substring match.
func matchesFilters(run types.Run, opts Options) bool {
	if opts.Status != "" && run.Status != opts.Status {
		return false
	}
	if opts.Function != "" {
		if run.FunctionID != opts.Function && !strings.Contains(run.FunctionName, opts.Function) {
			return false
		}
	}
	return true
}
