package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/runforge/runctl/internal/types"
	"github.com/runforge/runctl/internal/watch"
	"github.com/spf13/cobra"
)

var runsWatchCommand = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Watch a run until it reaches a terminal state",
	Long: `Polls a run and prints a line whenever its status changes, stopping when
the run completes, fails or is cancelled. Ctrl-C stops the watch without
affecting the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsWatch,
}

var (
	watchInterval time.Duration
	watchTimeout  time.Duration
	watchVerbose  bool
)

func init() {
	runsWatchCommand.Flags().DurationVar(&watchInterval, "interval", watch.DefaultPollInterval, "Poll interval")
	runsWatchCommand.Flags().DurationVar(&watchTimeout, "timeout", 0, "Give up after this long (0 = no timeout)")
	runsWatchCommand.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Print detailed debug information")

	runsCommand.AddCommand(runsWatchCommand)
}

func runRunsWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(watchVerbose, 0)
	if err != nil {
		return err
	}

	res, err := resolveRun(cmd, a, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("Watching run %s (poll every %s, Ctrl-C to stop)\n", res.RunID, watchInterval)
	return watchTarget(ctx, a.client, watch.RunTarget(res.RunID), res.RunID, watchInterval, watchTimeout)
}

// watchTarget runs the poll loop for a target and reports its outcome,
// shared by "runs watch" and "events runs --watch". An interrupt stops
// the watch cleanly; the watched runs are unaffected.
func watchTarget(ctx context.Context, source watch.Source, target watch.Target, label string, interval, timeout time.Duration) error {
	poller := watch.NewPoller(source)
	outcome, err := poller.Watch(ctx, target, watch.Options{
		PollInterval: interval,
		MaxDuration:  timeout,
		OnRender: func(s watch.Snapshot) {
			fmt.Printf("[%s] %s\n", s.ObservedAt.Format("15:04:05"), snapshotLine(s))
		},
	})
	if errors.Is(err, context.Canceled) {
		fmt.Println("Watch stopped.")
		return nil
	}
	if err != nil {
		return err
	}
	if outcome == watch.OutcomeTimedOut {
		return fmt.Errorf("gave up watching %s after %s", label, timeout)
	}
	return nil
}

// snapshotLine renders one observation as a single status line.
func snapshotLine(s watch.Snapshot) string {
	if len(s.Runs) == 1 {
		run := s.Runs[0]
		line := fmt.Sprintf("run %s: %s", run.ID, run.Status)
		if d := run.Duration(s.ObservedAt); d > 0 {
			line += fmt.Sprintf(" (%s)", d.Round(time.Second))
		}
		return line
	}

	counts := make(map[types.RunStatus]int, len(s.Runs))
	for _, run := range s.Runs {
		counts[run.Status]++
	}
	parts := make([]string, 0, len(counts))
	for status, n := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(status))))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%d runs: %s", len(s.Runs), strings.Join(parts, ", "))
}
