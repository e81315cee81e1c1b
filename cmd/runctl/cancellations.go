package main

import (
	"fmt"
	"os"

	"github.com/runforge/runctl/internal/render"
	"github.com/spf13/cobra"
)

var cancellationsCommand = &cobra.Command{
	Use:   "cancellations",
	Short: "Inspect bulk cancellations",
}

var cancellationsGetCommand = &cobra.Command{
	Use:   "get <cancellation-id>",
	Short: "Show the progress of a bulk cancellation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancellationsGet,
}

var cancellationsOutput string

func init() {
	cancellationsGetCommand.Flags().StringVarP(&cancellationsOutput, "output", "o", "", "Output format: table (default) or json")

	cancellationsCommand.AddCommand(cancellationsGetCommand)
	rootCmd.AddCommand(cancellationsCommand)
}

func runCancellationsGet(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(cancellationsOutput)
	if err != nil {
		return err
	}

	a, err := newApp(false, 0)
	if err != nil {
		return err
	}

	cancellation, err := a.client.GetCancellation(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if format == render.FormatJSON {
		return render.JSON(os.Stdout, cancellation)
	}
	fmt.Printf("Cancellation:    %s\n", cancellation.ID)
	fmt.Printf("Status:          %s\n", cancellation.Status)
	fmt.Printf("Runs cancelled:  %d\n", cancellation.CancelledCount)
	return nil
}
