package main

import (
	"github.com/spf13/cobra"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List, inspect, watch and cancel runs",
}

func init() {
	rootCmd.AddCommand(runsCommand)
}
