// Package main provides the runctl command-line client for the run execution API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runctl",
	Short: "Inspect and manage function runs",
	Long:  "runctl lists, inspects, watches and cancels function runs against a run execution API. Configure it with RUNCTL_SIGNING_KEY, RUNCTL_ENV and RUNCTL_BASE_URL, or a .env file.",

	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
