package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/runforge/runctl/internal/render"
	"github.com/runforge/runctl/internal/resolve"
	"github.com/runforge/runctl/internal/types"
	"github.com/spf13/cobra"
)

var runsGetCommand = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one run",
	Long: `Shows the details of a single run. The identifier may be a full
26-character run ID or a suffix of one; suffixes are matched against
recently discovered runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsGet,
}

var (
	getOutput  string
	getVerbose bool
)

func init() {
	runsGetCommand.Flags().StringVarP(&getOutput, "output", "o", "", "Output format: table (default) or json")
	runsGetCommand.Flags().BoolVarP(&getVerbose, "verbose", "v", false, "Print detailed debug information")

	runsCommand.AddCommand(runsGetCommand)
}

func runRunsGet(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(getOutput)
	if err != nil {
		return err
	}

	a, err := newApp(getVerbose, 0)
	if err != nil {
		return err
	}

	res, err := resolveRun(cmd, a, args[0])
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, res.Run)
	}
	render.RunDetail(os.Stdout, res.Run, a.engine.Cache())
	return nil
}

// resolveRun maps a user-supplied identifier to a run, turning the
// resolver's not-found error into one with remediation attached.
func resolveRun(cmd *cobra.Command, a *app, identifier string) (*resolve.Resolution, error) {
	resolver := resolve.NewResolver(a.client, a.engine)
	res, err := resolver.Resolve(cmd.Context(), identifier)
	if err != nil {
		var notFound *resolve.NotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w (pass a full %d-character run ID, or a suffix of a recently started run)", err, types.RunIDLength)
		}
		return nil, err
	}
	if res.UsedPartial {
		a.printer.Debugf("resolved %q to run %s", identifier, res.RunID)
	}
	return res, nil
}
