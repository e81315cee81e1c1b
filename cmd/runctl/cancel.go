package main

import (
	"fmt"
	"time"

	"github.com/runforge/runctl/internal/api"
	"github.com/spf13/cobra"
)

var runsCancelCommand = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel a run, or every run of a function",
	Long: `With a run ID, requests cancellation of that single run. With --function,
submits a bulk cancellation covering the function's runs started inside
the --after / --before window; bulk cancellations are asynchronous and
can be tracked with "runctl cancellations get".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunsCancel,
}

var (
	cancelFunction string
	cancelAfter    string
	cancelBefore   string
	cancelVerbose  bool
)

func init() {
	runsCancelCommand.Flags().StringVarP(&cancelFunction, "function", "f", "", "Bulk-cancel runs of this function ID")
	runsCancelCommand.Flags().StringVar(&cancelAfter, "after", "", "Bulk: only runs started after this time (RFC3339 or YYYY-MM-DD)")
	runsCancelCommand.Flags().StringVar(&cancelBefore, "before", "", "Bulk: only runs started before this time (RFC3339 or YYYY-MM-DD)")
	runsCancelCommand.Flags().BoolVarP(&cancelVerbose, "verbose", "v", false, "Print detailed debug information")

	runsCommand.AddCommand(runsCancelCommand)
}

func runRunsCancel(cmd *cobra.Command, args []string) error {
	if cancelFunction != "" {
		if len(args) > 0 {
			return fmt.Errorf("pass a run ID or --function, not both")
		}
		return runBulkCancel(cmd)
	}
	if len(args) == 0 {
		return fmt.Errorf("pass a run ID, or --function for a bulk cancellation")
	}

	a, err := newApp(cancelVerbose, 0)
	if err != nil {
		return err
	}
	res, err := resolveRun(cmd, a, args[0])
	if err != nil {
		return err
	}
	if err := a.client.CancelRun(cmd.Context(), res.RunID); err != nil {
		return err
	}
	fmt.Printf("Requested cancellation of run %s\n", res.RunID)
	return nil
}

func runBulkCancel(cmd *cobra.Command) error {
	after, err := parseTimeFlag("after", cancelAfter)
	if err != nil {
		return err
	}
	before, err := parseTimeFlag("before", cancelBefore)
	if err != nil {
		return err
	}

	a, err := newApp(cancelVerbose, 0)
	if err != nil {
		return err
	}

	req := api.CancellationRequest{FunctionID: cancelFunction}
	if !after.IsZero() {
		req.StartedAfter = timePtr(after)
	}
	if !before.IsZero() {
		req.StartedBefore = timePtr(before)
	}

	cancellation, err := a.client.CreateCancellation(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Printf("Cancellation %s submitted (status: %s)\n", cancellation.ID, cancellation.Status)
	fmt.Printf("Track progress with: runctl cancellations get %s\n", cancellation.ID)
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
