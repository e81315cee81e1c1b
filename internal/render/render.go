// Package render presents runs, jobs, and events as terminal tables or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/runforge/runctl/internal/discovery"
	"github.com/runforge/runctl/internal/types"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied output format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON:
		return Format(s), nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table or json)", s)
}

var (
	greenStatus  = color.New(color.FgGreen)
	redStatus    = color.New(color.FgRed)
	yellowStatus = color.New(color.FgYellow)
	faintStatus  = color.New(color.Faint)
)

func statusCell(status types.RunStatus) string {
	switch status {
	case types.StatusCompleted:
		return greenStatus.Sprint(status)
	case types.StatusFailed:
		return redStatus.Sprint(status)
	case types.StatusCancelled:
		return faintStatus.Sprint(status)
	default:
		return yellowStatus.Sprint(status)
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatEnded(run *types.Run) string {
	if run.EndedAt == nil {
		return "-"
	}
	return formatTime(*run.EndedAt)
}

// functionLabel prefers the enriched name, then the raw function ID.
func functionLabel(run *types.Run, cache *discovery.Cache) string {
	if run.FunctionName != "" {
		return run.FunctionName
	}
	if e, ok := cache.Get(run.ID); ok && e.FunctionName != "" {
		return e.FunctionName
	}
	if run.FunctionID != "" {
		return run.FunctionID
	}
	return "-"
}

// RunsTable writes one row per run, using the discovery cache for
// function-name enrichment.
func RunsTable(w io.Writer, runs []types.Run, cache *discovery.Cache) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tFUNCTION\tSTARTED\tENDED")
	for i := range runs {
		run := &runs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, statusCell(run.Status), functionLabel(run, cache),
			formatTime(run.StartedAt), formatEnded(run))
	}
	_ = tw.Flush()
}

// RunDetail writes a full view of one run, including the triggering input
// when discovery captured it.
func RunDetail(w io.Writer, run *types.Run, cache *discovery.Cache) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Status:   %s\n", statusCell(run.Status))
	fmt.Fprintf(w, "Function: %s\n", functionLabel(run, cache))
	if run.FunctionVersion > 0 {
		fmt.Fprintf(w, "Version:  %d\n", run.FunctionVersion)
	}
	if run.EventID != "" {
		fmt.Fprintf(w, "Event:    %s\n", run.EventID)
	}
	fmt.Fprintf(w, "Started:  %s\n", formatTime(run.StartedAt))
	if run.EndedAt != nil {
		fmt.Fprintf(w, "Ended:    %s (%s)\n", formatTime(*run.EndedAt), run.Duration(time.Now()).Round(time.Millisecond))
	}
	if e, ok := cache.Get(run.ID); ok && len(e.Input) > 0 {
		fmt.Fprintf(w, "Input:    %s\n", compactJSON(e.Input))
	}
	if len(run.Output) > 0 {
		fmt.Fprintf(w, "Output:   %s\n", compactJSON(run.Output))
	}
}

// JobsTable writes one row per step of a run.
func JobsTable(w io.Writer, jobs []types.Job) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tSTARTED\tENDED\tJOB ID")
	for i := range jobs {
		job := &jobs[i]
		ended := "-"
		if job.EndedAt != nil {
			ended = formatTime(*job.EndedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			job.Step, statusCell(job.Status), formatTime(job.StartedAt), ended, job.ID)
	}
	_ = tw.Flush()
}

// EventsTable writes one row per event.
func EventsTable(w io.Writer, events []types.Event) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tNAME\tRECEIVED")
	for i := range events {
		event := &events[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", event.ID, event.Name, formatTime(event.Timestamp))
	}
	_ = tw.Flush()
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(compact)
}
