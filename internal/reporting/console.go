// File: internal/reporting/console.go
package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tradehelm/kitelaunch/internal/tracker"
)

// ConsoleSink renders events as colored lines and the final report as a
// summary table on the given writer.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	headerStyle  lipgloss.Style
	accountStyle lipgloss.Style
	infoStyle    lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewConsoleSink returns a sink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:          out,
		headerStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5722")),
		accountStyle: lipgloss.NewStyle().Bold(true),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		successStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		warnStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		errorStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dimStyle:     lipgloss.NewStyle().Faint(true),
	}
}

// Banner prints the run header.
func (c *ConsoleSink) Banner(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	title := c.headerStyle.Render("kitelaunch") + c.dimStyle.Render(" "+version)
	rule := c.dimStyle.Render(strings.Repeat("─", 56))
	fmt.Fprintf(c.out, "\n%s\n%s\n", title, rule)
}

// Emit writes one status line.
func (c *ConsoleSink) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tag string
	switch ev.Level {
	case LevelSuccess:
		tag = c.successStyle.Render("  ok")
	case LevelWarning:
		tag = c.warnStyle.Render("warn")
	case LevelError:
		tag = c.errorStyle.Render("fail")
	default:
		tag = c.infoStyle.Render("info")
	}

	account := ""
	if ev.AccountID != "" {
		account = c.accountStyle.Render("["+ev.AccountID+"]") + " "
	}
	ts := c.dimStyle.Render(ev.Time.Format("15:04:05"))
	fmt.Fprintf(c.out, "%s %s %s%s\n", ts, tag, account, ev.Message)
}

// Summary renders the end-of-run table: one row per account plus totals.
func (c *ConsoleSink) Summary(report RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.dimStyle.Render(strings.Repeat("─", 56))
	fmt.Fprintf(c.out, "\n%s\n", rule)

	if report.DryRun {
		fmt.Fprintf(c.out, "%s\n", c.warnStyle.Render("dry run: no browsers were launched"))
	}

	idWidth := len("account")
	for _, a := range report.Attempts {
		if len(a.AccountID) > idWidth {
			idWidth = len(a.AccountID)
		}
	}

	fmt.Fprintf(c.out, "%-*s  %-8s  %s\n", idWidth, "account", "result", "detail")
	for _, a := range report.Attempts {
		var result, detail string
		switch a.Status {
		case tracker.StatusSuccess:
			result = c.successStyle.Render("success")
			if !a.FinishedAt.IsZero() && !a.StartedAt.IsZero() {
				detail = c.dimStyle.Render(a.FinishedAt.Sub(a.StartedAt).Round(100e6).String())
			}
		case tracker.StatusFailed:
			result = c.errorStyle.Render("failed")
			detail = fmt.Sprintf("%s: %s", a.Stage, a.ErrorDetail)
		default:
			result = c.warnStyle.Render(string(a.Status))
		}
		fmt.Fprintf(c.out, "%-*s  %-8s  %s\n", idWidth, a.AccountID, result, detail)
	}

	line := fmt.Sprintf("%d succeeded / %d failed of %d",
		report.Summary.Succeeded, report.Summary.Failed, report.Summary.Total)
	if report.Summary.Failed > 0 {
		line += "  (" + formatStages(report.Summary.FailedStages) + ")"
	}
	fmt.Fprintf(c.out, "%s\n%s\n", rule, c.accountStyle.Render(line))
}

func formatStages(stages map[string]int) string {
	keys := make([]string, 0, len(stages))
	for k := range stages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, stages[k]))
	}
	return strings.Join(parts, ", ")
}
