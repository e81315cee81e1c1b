package main

import (
	"fmt"
	"os"

	"github.com/runforge/runctl/internal/discovery"
	"github.com/runforge/runctl/internal/render"
	"github.com/spf13/cobra"
)

var runsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List recent runs discovered from the event stream",
	Long: `Lists runs by scanning the event stream, resolving each triggering event to
its run and enriching it with the function name and original input.

Without filters the most recent runs are returned. --status and --function
filter after resolution; --hours, --after and --before bound the search
window. --all pages through the entire window, up to a safety ceiling.`,
	RunE: runRunsList,
}

var (
	listStatus        string
	listFunction      string
	listHours         int
	listAfter         string
	listBefore        string
	listLimit         int
	listCursor        string
	listAll           bool
	listOutput        string
	listLookbackHours int
	listVerbose       bool
)

func init() {
	runsListCommand.Flags().StringVarP(&listStatus, "status", "s", "", "Only runs with this status (Queued, Running, Completed, Failed, Cancelled)")
	runsListCommand.Flags().StringVarP(&listFunction, "function", "f", "", "Only runs of this function (exact ID or name substring)")
	runsListCommand.Flags().IntVar(&listHours, "hours", 0, "Look back this many hours from now")
	runsListCommand.Flags().StringVar(&listAfter, "after", "", "Only runs triggered after this time (RFC3339 or YYYY-MM-DD)")
	runsListCommand.Flags().StringVar(&listBefore, "before", "", "Only runs triggered before this time (RFC3339 or YYYY-MM-DD)")
	runsListCommand.Flags().IntVarP(&listLimit, "limit", "n", discovery.DefaultLimit, "Maximum runs to return")
	runsListCommand.Flags().StringVar(&listCursor, "cursor", "", "Continue a previous listing from this cursor")
	runsListCommand.Flags().BoolVar(&listAll, "all", false, "Fetch every matching run in the window")
	runsListCommand.Flags().StringVarP(&listOutput, "output", "o", "", "Output format: table (default) or json")
	runsListCommand.Flags().IntVar(&listLookbackHours, "lookback-hours", 0, "Status-filter lookback window (defaults to RUNCTL_STATUS_LOOKBACK_HOURS)")
	runsListCommand.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Print detailed debug information")

	runsCommand.AddCommand(runsListCommand)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	status, err := parseStatusFlag(listStatus)
	if err != nil {
		return err
	}
	after, err := parseTimeFlag("after", listAfter)
	if err != nil {
		return err
	}
	before, err := parseTimeFlag("before", listBefore)
	if err != nil {
		return err
	}

	a, err := newApp(listVerbose, listLookbackHours)
	if err != nil {
		return err
	}

	collector := discovery.NewCollector(a.engine)
	result, err := collector.Collect(cmd.Context(), discovery.CollectOptions{
		Options: discovery.Options{
			Status:   status,
			Function: listFunction,
			After:    after,
			Before:   before,
			Hours:    listHours,
			Limit:    listLimit,
			Cursor:   listCursor,
		},
		FetchAll: listAll,
		OnProgress: func(message string) {
			a.printer.Progressf("%s", message)
		},
	})
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, result)
	}

	render.RunsTable(os.Stdout, result.Runs, a.engine.Cache())
	if result.HasMore && result.NextCursor != "" {
		fmt.Printf("\nMore runs available. Continue with --cursor %s\n", result.NextCursor)
	}
	return nil
}
