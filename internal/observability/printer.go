// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"time"
)

// Printer handles debug and progress output. Debug lines are emitted only
// when verbose mode is enabled; progress lines are always emitted.
type Printer struct {
	out     io.Writer
	verbose bool
}

// NewPrinter creates a Printer writing to out. When verbose is false,
// Debugf calls are dropped.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{out: out, verbose: verbose}
}

// Verbose reports whether debug output is enabled.
func (p *Printer) Verbose() bool {
	return p != nil && p.verbose
}

// Debugf prints a debug line in verbose mode. Used for absorbed transient
// errors and discovery progress that would otherwise be invisible.
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) Debugf(format string, args ...any) {
	if !p.Verbose() {
		return
	}
	fmt.Fprintf(p.out, "debug: "+format+"\n", args...)
}

// Progressf prints a progress line regardless of verbosity.
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) Progressf(format string, args ...any) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// DebugTiming prints the elapsed time of a named step in verbose mode.
func (p *Printer) DebugTiming(step string, start time.Time) {
	p.Debugf("%s took %s", step, time.Since(start).Round(time.Millisecond))
}
