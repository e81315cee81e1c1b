package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/runforge/runctl/internal/api"
	"github.com/runforge/runctl/internal/render"
	"github.com/runforge/runctl/internal/watch"
	"github.com/spf13/cobra"
)

var eventsCommand = &cobra.Command{
	Use:   "events",
	Short: "Inspect the event stream",
}

var eventsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List recent events",
	RunE:  runEventsList,
}

var eventsGetCommand = &cobra.Command{
	Use:   "get <event-id>",
	Short: "Show one event and its payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsGet,
}

var eventsRunsCommand = &cobra.Command{
	Use:   "runs <event-id>",
	Short: "List the runs triggered by an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsRuns,
}

var (
	eventsListLimit  int
	eventsListCursor string
	eventsListName   string
	eventsListHours  int
	eventsListOutput string

	eventsGetOutput string

	eventsRunsOutput   string
	eventsRunsWatch    bool
	eventsRunsInterval time.Duration
	eventsRunsTimeout  time.Duration
)

func init() {
	eventsListCommand.Flags().IntVarP(&eventsListLimit, "limit", "n", 20, "Maximum events to return")
	eventsListCommand.Flags().StringVar(&eventsListCursor, "cursor", "", "Continue a previous listing from this cursor")
	eventsListCommand.Flags().StringVar(&eventsListName, "name", "", "Only events with this name")
	eventsListCommand.Flags().IntVar(&eventsListHours, "hours", 0, "Look back this many hours from now")
	eventsListCommand.Flags().StringVarP(&eventsListOutput, "output", "o", "", "Output format: table (default) or json")

	eventsGetCommand.Flags().StringVarP(&eventsGetOutput, "output", "o", "", "Output format: table (default) or json")

	eventsRunsCommand.Flags().StringVarP(&eventsRunsOutput, "output", "o", "", "Output format: table (default) or json")
	eventsRunsCommand.Flags().BoolVarP(&eventsRunsWatch, "watch", "w", false, "Keep polling until every run reaches a terminal state")
	eventsRunsCommand.Flags().DurationVar(&eventsRunsInterval, "interval", watch.DefaultPollInterval, "Poll interval (with --watch)")
	eventsRunsCommand.Flags().DurationVar(&eventsRunsTimeout, "timeout", 0, "Give up after this long (with --watch, 0 = no timeout)")

	eventsCommand.AddCommand(eventsListCommand)
	eventsCommand.AddCommand(eventsGetCommand)
	eventsCommand.AddCommand(eventsRunsCommand)
	rootCmd.AddCommand(eventsCommand)
}

func runEventsList(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(eventsListOutput)
	if err != nil {
		return err
	}

	a, err := newApp(false, 0)
	if err != nil {
		return err
	}

	opts := api.ListEventsOpts{
		Limit:  eventsListLimit,
		Cursor: eventsListCursor,
		Name:   eventsListName,
	}
	if eventsListHours > 0 {
		opts.ReceivedAfter = time.Now().Add(-time.Duration(eventsListHours) * time.Hour)
	}

	page, err := a.client.ListEvents(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, page)
	}

	render.EventsTable(os.Stdout, page.Events)
	if page.HasMore && page.Cursor != "" {
		fmt.Printf("\nMore events available. Continue with --cursor %s\n", page.Cursor)
	}
	return nil
}

func runEventsGet(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(eventsGetOutput)
	if err != nil {
		return err
	}

	a, err := newApp(false, 0)
	if err != nil {
		return err
	}

	event, err := a.client.GetEvent(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, event)
	}
	fmt.Printf("Event:     %s\n", event.ID)
	fmt.Printf("Name:      %s\n", event.Name)
	fmt.Printf("Received:  %s\n", event.Timestamp.Format(time.RFC3339))
	if len(event.Data) > 0 {
		fmt.Println("Payload:")
		return render.JSON(os.Stdout, event.Data)
	}
	return nil
}

func runEventsRuns(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(eventsRunsOutput)
	if err != nil {
		return err
	}

	a, err := newApp(false, 0)
	if err != nil {
		return err
	}

	eventID := args[0]
	if eventsRunsWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		fmt.Printf("Watching runs of event %s (poll every %s, Ctrl-C to stop)\n", eventID, eventsRunsInterval)
		return watchTarget(ctx, a.client, watch.EventTarget(eventID), "event "+eventID, eventsRunsInterval, eventsRunsTimeout)
	}

	runs, err := a.client.GetEventRuns(cmd.Context(), eventID)
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, runs)
	}
	render.RunsTable(os.Stdout, runs, nil)
	return nil
}
