// Package discovery reconstructs a filterable, paginated view of runs from
// an upstream API that only exposes runs indirectly, via the events that
// triggered them.
package discovery

import "encoding/json"

// Enrichment is the per-run payload derived from the first event seen for
// that run: the function name and the original triggering input.
type Enrichment struct {
	FunctionName string
	Input        json.RawMessage
}

// Cache maps run IDs to enrichment payloads gathered during discovery.
// It lives for a single command invocation: one Engine owns it, writes it
// during materialization, and rendering reads it afterwards. It is never
// shared across invocations, so no locking is needed.
type Cache struct {
	entries map[string]Enrichment
}

// NewCache creates an empty enrichment cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Enrichment)}
}

// Put stores the enrichment for a run. The first entry for a run ID wins;
// later duplicates are ignored.
func (c *Cache) Put(runID string, e Enrichment) {
	if _, ok := c.entries[runID]; ok {
		return
	}
	c.entries[runID] = e
}

// Get returns the enrichment for a run, if discovery saw one.
func (c *Cache) Get(runID string) (Enrichment, bool) {
	if c == nil {
		return Enrichment{}, false
	}
	e, ok := c.entries[runID]
	return e, ok
}

// Len returns the number of enriched runs.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
