package document

import (
	"fmt"
	"strings"
	"time"

	"vaulttasks/internal/core"
)

// defaultSubsectionDepth is the heading depth used when a subsection is
// inserted fresh. Replacing an existing subsection keeps its depth.
const defaultSubsectionDepth = 4

var statusLabels = map[core.TaskStatus]string{
	core.StatusSuccess:  "✅ Success",
	core.StatusFailed:   "❌ Failed",
	core.StatusRunning:  "🔄 Running",
	core.StatusNeverRun: "Never run",
}

// FormatStatus renders a status with its glyph.
func FormatStatus(status core.TaskStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// FormatTime renders a timestamp, or the "-" sentinel for none.
func FormatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(TimeLayout)
}

// FormatDuration renders a duration as seconds with one decimal.
func FormatDuration(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatResult(summary string) string {
	if summary == "" {
		return "-"
	}
	summary = strings.TrimSpace(strings.ReplaceAll(summary, "\n", " "))
	return core.TruncateSummary(summary)
}

func headingPrefix(depth int) string {
	if depth <= 0 || depth > 6 {
		depth = defaultSubsectionDepth
	}
	return strings.Repeat("#", depth)
}

// CurrentStateLines renders the Current State subsection at the given
// heading depth.
func CurrentStateLines(task *core.Task, depth int) []string {
	return []string{
		headingPrefix(depth) + " " + LabelCurrentState,
		"- Status: " + FormatStatus(task.Status),
		"- Last Run: " + FormatTime(task.LastRun),
		"- Next Run: " + FormatTime(task.NextRun),
		"- Duration: " + FormatDuration(task.Duration),
		"- Result: " + formatResult(task.ResultSummary),
	}
}

// StatisticsLines renders the Statistics subsection at the given
// heading depth.
func StatisticsLines(task *core.Task, depth int) []string {
	return []string{
		headingPrefix(depth) + " " + LabelStatistics,
		fmt.Sprintf("- Total Runs: %d", task.TotalRuns),
		fmt.Sprintf("- Successful: %d", task.SuccessfulRuns),
		fmt.Sprintf("- Failed: %d", task.FailedRuns),
		"- Last Failure: " + FormatTime(task.LastFailure),
	}
}

// RunHistoryLines renders the Run History table, newest first, capped
// at MaxHistoryEntries rows.
func RunHistoryLines(history []core.HistoryEntry, depth int) []string {
	lines := []string{
		headingPrefix(depth) + " " + LabelRunHistory,
		"| Time | Status | Duration | Report |",
		"|------|--------|----------|--------|",
	}
	n := len(history)
	if n > core.MaxHistoryEntries {
		n = core.MaxHistoryEntries
	}
	for _, entry := range history[:n] {
		glyph := "✅"
		if entry.Status != core.StatusSuccess {
			glyph = "❌"
		}
		report := "-"
		if entry.Report != "" {
			report = "[[" + entry.Report + "]]"
		}
		d := entry.Duration
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |",
			entry.Time.Format(TimeLayout), glyph, FormatDuration(&d), report))
	}
	return lines
}
