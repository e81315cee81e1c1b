package schemas

import (
	"encoding/json"
	"time"

	"github.com/runforge/runctl/internal/types"
)

// DecodeRun validates raw JSON against the run schema and decodes it into
// a normalized Run. Validation is all-or-nothing: no partially decoded run
// is ever returned.
func DecodeRun(raw []byte) (*types.Run, error) {
	if err := Validate("run", raw); err != nil {
		return nil, err
	}
	var run types.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, &ValidationError{
			Schema: "run",
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	return &run, nil
}

// eventWire is the wire shape of an event record. Timestamps arrive as
// epoch milliseconds and are normalized to time.Time.
type eventWire struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Ts   int64           `json:"ts"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent validates raw JSON against the event schema and decodes it
// into a normalized Event.
func DecodeEvent(raw []byte) (*types.Event, error) {
	if err := Validate("event", raw); err != nil {
		return nil, err
	}
	var wire eventWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ValidationError{
			Schema: "event",
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	return &types.Event{
		ID:        wire.ID,
		Name:      wire.Name,
		Data:      wire.Data,
		Timestamp: time.UnixMilli(wire.Ts).UTC(),
	}, nil
}

// eventsPageWire is the wire shape of one page of the events listing.
type eventsPageWire struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
	Cursor  *string           `json:"cursor"`
}

// DecodeEventsPage validates raw JSON against the events_page schema and
// decodes every contained event. A malformed event anywhere in the page
// fails the whole page.
func DecodeEventsPage(raw []byte) (*types.EventsPage, error) {
	if err := Validate("events_page", raw); err != nil {
		return nil, err
	}
	var wire eventsPageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ValidationError{
			Schema: "events_page",
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}

	page := &types.EventsPage{
		Events:  make([]types.Event, 0, len(wire.Data)),
		HasMore: wire.HasMore,
	}
	if wire.Cursor != nil {
		page.Cursor = *wire.Cursor
	}
	for _, rawEvent := range wire.Data {
		event, err := DecodeEvent(rawEvent)
		if err != nil {
			return nil, err
		}
		page.Events = append(page.Events, *event)
	}
	return page, nil
}

// DecodeJob validates raw JSON against the job schema and decodes it into
// a normalized Job.
func DecodeJob(raw []byte) (*types.Job, error) {
	if err := Validate("job", raw); err != nil {
		return nil, err
	}
	var job types.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, &ValidationError{
			Schema: "job",
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	return &job, nil
}

// DecodeCancellation validates raw JSON against the cancellation schema
// and decodes it.
func DecodeCancellation(raw []byte) (*types.Cancellation, error) {
	if err := Validate("cancellation", raw); err != nil {
		return nil, err
	}
	var c types.Cancellation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, &ValidationError{
			Schema: "cancellation",
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	return &c, nil
}
