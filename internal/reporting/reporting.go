// File: internal/reporting/reporting.go
// Package reporting receives status events and aggregated run results from the
// orchestrator and renders them. The core only ever talks to the Sink
// interface; rendering details stay on this side of the boundary.
package reporting

import (
	"time"

	"github.com/tradehelm/kitelaunch/internal/tracker"
)

// Level classifies an event for rendering.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one status line attributable to an account (or to the run as a
// whole when AccountID is empty).
type Event struct {
	AccountID string
	Level     Level
	Message   string
	Time      time.Time
}

// RunReport is the aggregated outcome of one orchestrator run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Attempts   []tracker.Attempt
	Summary    tracker.Summary
}

// Sink consumes events and the final report. Implementations must be safe for
// concurrent Emit calls; workers report from their own goroutines.
type Sink interface {
	Emit(Event)
	Summary(RunReport)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event)        {}
func (NopSink) Summary(RunReport) {}

// MultiSink fans out to several sinks, typically the console renderer plus
// the structured log.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

func (m MultiSink) Summary(r RunReport) {
	for _, s := range m {
		s.Summary(r)
	}
}

// Emit is a convenience for constructing and sending an event stamped now.
func Emit(s Sink, accountID string, level Level, message string) {
	s.Emit(Event{
		AccountID: accountID,
		Level:     level,
		Message:   message,
		Time:      time.Now(),
	})
}
