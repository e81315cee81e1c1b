package main

import (
	"os"

	"github.com/runforge/runctl/internal/render"
	"github.com/spf13/cobra"
)

var jobsCommand = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the jobs of a run",
}

var jobsListCommand = &cobra.Command{
	Use:   "list <run-id>",
	Short: "List the execution steps of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsList,
}

var (
	jobsOutput  string
	jobsVerbose bool
)

func init() {
	jobsListCommand.Flags().StringVarP(&jobsOutput, "output", "o", "", "Output format: table (default) or json")
	jobsListCommand.Flags().BoolVarP(&jobsVerbose, "verbose", "v", false, "Print detailed debug information")

	jobsCommand.AddCommand(jobsListCommand)
	rootCmd.AddCommand(jobsCommand)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(jobsOutput)
	if err != nil {
		return err
	}

	a, err := newApp(jobsVerbose, 0)
	if err != nil {
		return err
	}

	res, err := resolveRun(cmd, a, args[0])
	if err != nil {
		return err
	}

	jobs, err := a.client.ListJobs(cmd.Context(), res.RunID)
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, jobs)
	}
	render.JobsTable(os.Stdout, jobs)
	return nil
}
