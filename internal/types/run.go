// Package types provides type definitions for records exchanged with the
// run-execution API.
package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	StatusQueued    RunStatus = "Queued"
	StatusRunning   RunStatus = "Running"
	StatusCompleted RunStatus = "Completed"
	StatusFailed    RunStatus = "Failed"
	StatusCancelled RunStatus = "Cancelled"
)

// AllStatuses lists every valid run status, in lifecycle order.
var AllStatuses = []RunStatus{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Terminal reports whether the status is a final state. A run in a terminal
// state will never transition again.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseRunStatus converts a user-supplied string into a RunStatus,
// case-insensitively. Returns false if the string names no known status.
func ParseRunStatus(s string) (RunStatus, bool) {
	for _, status := range AllStatuses {
		if strings.EqualFold(s, string(status)) {
			return status, true
		}
	}
	return "", false
}

// RunIDLength is the length of a canonical run identifier.
const RunIDLength = 26

// IsRunID reports whether s has the canonical run-ID shape: a 26-character
// ULID in Crockford base32 (no I, L, O, or U).
func IsRunID(s string) bool {
	if len(s) != RunIDLength {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}

// Run is one execution instance of a function.
//
// EndedAt is nil while the run is non-terminal. A terminal run is expected
// to carry EndedAt, but upstream occasionally omits it; callers must
// tolerate that rather than assume the invariant holds.
type Run struct {
	ID              string          `json:"run_id"`
	Status          RunStatus       `json:"status"`
	StartedAt       time.Time       `json:"run_started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
	EventID         string          `json:"event_id,omitempty"`
	FunctionID      string          `json:"function_id,omitempty"`
	FunctionVersion int             `json:"function_version,omitempty"`

	// FunctionName is derived during discovery from the triggering event;
	// it is never present in raw API responses.
	FunctionName string `json:"function_name,omitempty"`
}

// Duration returns the elapsed time of the run, using now for runs that
// have not ended.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Event is an upstream trigger record. Its Data payload may embed a
// reference to the run it triggered.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data,omitempty"`

	// Timestamp is normalized from the wire's epoch-millisecond ts field
	// during decoding and marshals as RFC3339.
	Timestamp time.Time `json:"received_at"`
}

// EventsPage is one page of the paginated events listing.
type EventsPage struct {
	Events  []Event
	HasMore bool
	Cursor  string
}

// Job is one step within a run's execution.
type Job struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Step      string          `json:"step"`
	Status    RunStatus       `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// Cancellation is the status record of a bulk cancellation request.
type Cancellation struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	CancelledCount int    `json:"cancelled_count"`
}
