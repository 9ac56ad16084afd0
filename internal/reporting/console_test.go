// File: internal/reporting/console_test.go
package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradehelm/kitelaunch/internal/tracker"
)

func sampleReport() RunReport {
	start := time.Date(2026, 8, 28, 9, 14, 0, 0, time.UTC)
	return RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(40 * time.Second),
		Attempts: []tracker.Attempt{
			{AccountID: "AB1234", Status: tracker.StatusSuccess, StartedAt: start, FinishedAt: start.Add(12 * time.Second)},
			{AccountID: "CD5678", Status: tracker.StatusFailed, Stage: "credentials", ErrorDetail: "element not found"},
		},
		Summary: tracker.Summary{
			Total:        2,
			Succeeded:    1,
			Failed:       1,
			FailedStages: map[string]int{"credentials": 1},
		},
	}
}

func TestConsoleSinkEmit(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	Emit(sink, "AB1234", LevelSuccess, "login succeeded")
	Emit(sink, "CD5678", LevelError, "login failed at stage credentials")
	Emit(sink, "", LevelInfo, "run started")

	out := buf.String()
	assert.Contains(t, out, "[AB1234]")
	assert.Contains(t, out, "login succeeded")
	assert.Contains(t, out, "[CD5678]")
	assert.Contains(t, out, "login failed at stage credentials")
	// Run-level events carry no account tag.
	assert.Contains(t, out, "run started")
	assert.NotContains(t, out, "[]")
}

func TestConsoleSinkSummary(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	sink.Summary(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "AB1234")
	assert.Contains(t, out, "CD5678")
	assert.Contains(t, out, "credentials: element not found")
	assert.Contains(t, out, "1 succeeded / 1 failed of 2")
	assert.Contains(t, out, "credentials: 1")
	assert.NotContains(t, out, "dry run")
}

func TestConsoleSinkSummaryDryRun(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	report := sampleReport()
	report.DryRun = true
	sink.Summary(report)

	assert.Contains(t, buf.String(), "dry run: no browsers were launched")
}

func TestConsoleSinkBanner(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleSink(&buf).Banner("1.0")

	assert.Contains(t, buf.String(), "kitelaunch")
	assert.Contains(t, buf.String(), "1.0")
}

func TestFormatStages(t *testing.T) {
	got := formatStages(map[string]int{"verify": 2, "credentials": 1})
	assert.Equal(t, "credentials: 1, verify: 2", got, "stages sort for stable output")
}

func TestMultiSinkFansOut(t *testing.T) {
	var a, b bytes.Buffer
	multi := MultiSink{NewConsoleSink(&a), NewConsoleSink(&b)}

	Emit(multi, "AB1234", LevelInfo, "hello")
	multi.Summary(sampleReport())

	for _, buf := range []*bytes.Buffer{&a, &b} {
		require.NotZero(t, buf.Len())
		assert.Contains(t, buf.String(), "hello")
		assert.Contains(t, buf.String(), "1 succeeded / 1 failed of 2")
	}
}
