package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runforge/runctl/internal/api"
	"github.com/runforge/runctl/internal/config"
	"github.com/runforge/runctl/internal/discovery"
	"github.com/runforge/runctl/internal/observability"
	"github.com/runforge/runctl/internal/types"
)

// app bundles the wired dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	client  *api.Client
	engine  *discovery.Engine
	printer *observability.Printer
}

// newApp loads configuration from the environment and builds the API
// client and discovery engine. lookbackHours, when positive, overrides
// RUNCTL_STATUS_LOOKBACK_HOURS for this invocation.
func newApp(verbose bool, lookbackHours int) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if lookbackHours > 0 {
		cfg.StatusLookbackHours = lookbackHours
	}

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.BearerToken(),
	})
	if err != nil {
		return nil, err
	}

	printer := observability.NewPrinter(os.Stderr, verbose)
	engine := discovery.NewEngine(client, discovery.EngineConfig{
		Printer:        printer,
		StatusLookback: time.Duration(cfg.StatusLookbackHours) * time.Hour,
	})

	return &app{cfg: cfg, client: client, engine: engine, printer: printer}, nil
}

// timeFlagLayouts are the accepted shapes for --after / --before values,
// tried in order.
var timeFlagLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimeFlag parses a user-supplied timestamp flag. An empty value
// yields the zero time. Date-only values are interpreted as midnight UTC.
func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeFlagLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --%s value %q (want RFC3339 or YYYY-MM-DD)", name, value)
}

// parseStatusFlag parses a user-supplied --status value. An empty value
// yields the empty status, meaning no filter.
func parseStatusFlag(value string) (types.RunStatus, error) {
	if value == "" {
		return "", nil
	}
	status, ok := types.ParseRunStatus(value)
	if !ok {
		names := make([]string, len(types.AllStatuses))
		for i, s := range types.AllStatuses {
			names[i] = string(s)
		}
		return "", fmt.Errorf("unknown status %q (want one of %s)", value, strings.Join(names, ", "))
	}
	return status, nil
}
