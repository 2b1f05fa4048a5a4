// Package document implements the markdown document model: locating
// task-defining sections in a text buffer, extracting their labeled
// fields, and surgically replacing the system-managed subsections
// without disturbing anything a human wrote. The package does no file
// I/O; it works on line slices and leaves persistence to the vault.
package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vaulttasks/internal/core"
)

// Subsection labels the system owns inside a task section. Everything
// else in the section belongs to the user.
const (
	LabelCurrentState = "Current State"
	LabelStatistics   = "Statistics"
	LabelRunHistory   = "Run History"
	LabelParameters   = "Parameters"
)

// TimeLayout is the timestamp format used in task documents.
const TimeLayout = "2006-01-02 15:04:05"

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	commandRe      = regexp.MustCompile(`(?i)^\s*-\s*Command:\s*` + "`(.+?)`" + `\s*$`)
	commandPlainRe = regexp.MustCompile(`(?i)^\s*-\s*Command:\s*(.+?)\s*$`)
	scheduleRe     = regexp.MustCompile(`(?i)^\s*-\s*Schedule:\s*(.+?)\s*$`)
	statusRe       = regexp.MustCompile(`(?i)^\s*-\s*Status:\s*(.+?)\s*$`)
	lastRunRe      = regexp.MustCompile(`(?i)^\s*-\s*Last Run:\s*(.+?)\s*$`)
	nextRunRe      = regexp.MustCompile(`(?i)^\s*-\s*Next Run:\s*(.+?)\s*$`)
	durationRe     = regexp.MustCompile(`(?i)^\s*-\s*Duration:\s*(.+?)\s*$`)
	resultRe       = regexp.MustCompile(`(?i)^\s*-\s*Result:\s*(.+?)\s*$`)
	totalRunsRe    = regexp.MustCompile(`(?i)^\s*-\s*Total Runs:\s*(.+?)\s*$`)
	successfulRe   = regexp.MustCompile(`(?i)^\s*-\s*Successful:\s*(.+?)\s*$`)
	failedRe       = regexp.MustCompile(`(?i)^\s*-\s*Failed:\s*(.+?)\s*$`)
	lastFailureRe  = regexp.MustCompile(`(?i)^\s*-\s*Last Failure:\s*(.+?)\s*$`)

	paramRe      = regexp.MustCompile(`^\s*-\s*([^:]+):\s*(.*?)\s*$`)
	historyRowRe = regexp.MustCompile(`^\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|$`)
	wikiLinkRe   = regexp.MustCompile(`^\[\[(.+)\]\]$`)
)

// Section is a heading-bounded region of a document that defines a
// task: it contains both a Command and a Schedule marker line.
type Section struct {
	// HeadingLine is the index of the section's title line, or -1 when
	// no heading precedes the markers (the one-file-one-task degenerate
	// case, where the filename carries the title).
	HeadingLine int
	Depth       int
	Title       string
	// Start and End delimit the section's extent as [Start, End).
	Start int
	End   int
}

type heading struct {
	line  int
	depth int
	title string
}

func scanHeadings(lines []string) []heading {
	var hs []heading
	for i, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			hs = append(hs, heading{line: i, depth: len(m[1]), title: strings.TrimSpace(m[2])})
		}
	}
	return hs
}

// Locate finds every task section in the buffer: regions that contain
// both marker lines. The owning title is the nearest preceding heading
// at any depth; the extent runs to the next heading of equal or
// shallower depth, or end of file. A region with no preceding heading
// spans the whole file. Sections are returned in document order.
func Locate(lines []string) []Section {
	hs := scanHeadings(lines)

	var sections []Section
	seen := map[int]bool{}
	for i, line := range lines {
		if !commandRe.MatchString(line) && !commandPlainRe.MatchString(line) {
			continue
		}
		sec := sectionFor(lines, hs, i)
		if seen[sec.Start] {
			continue
		}
		if !containsSchedule(lines, sec.Start, sec.End) {
			continue
		}
		seen[sec.Start] = true
		sections = append(sections, sec)
	}
	return sections
}

// sectionFor bounds the section owning the marker at line idx.
func sectionFor(lines []string, hs []heading, idx int) Section {
	var owner *heading
	for k := range hs {
		if hs[k].line <= idx {
			owner = &hs[k]
		} else {
			break
		}
	}
	if owner == nil {
		return Section{HeadingLine: -1, Start: 0, End: len(lines)}
	}
	end := len(lines)
	for _, h := range hs {
		if h.line > owner.line && h.depth <= owner.depth {
			end = h.line
			break
		}
	}
	return Section{
		HeadingLine: owner.line,
		Depth:       owner.depth,
		Title:       owner.title,
		Start:       owner.line,
		End:         end,
	}
}

func containsSchedule(lines []string, start, end int) bool {
	for i := start; i < end; i++ {
		if scheduleRe.MatchString(lines[i]) {
			return true
		}
	}
	return false
}

// Extract reads a located section into a Task. Missing or unparsable
// state and statistics fields degrade to defaults with a warning;
// extraction never fails outright. The returned task has no ID or
// source location; the repository fills those in.
func Extract(lines []string, sec Section) (*core.Task, []string) {
	var warnings []string
	task := &core.Task{
		Title:  sec.Title,
		Status: core.StatusNeverRun,
	}

	for i := sec.Start; i < sec.End; i++ {
		line := lines[i]

		if task.Command == "" {
			if m := commandRe.FindStringSubmatch(line); m != nil {
				task.Command = m[1]
				continue
			}
			if m := commandPlainRe.FindStringSubmatch(line); m != nil {
				task.Command = m[1]
				continue
			}
		}
		if task.Schedule == "" {
			if m := scheduleRe.FindStringSubmatch(line); m != nil {
				task.Schedule = strings.Trim(m[1], "`")
				continue
			}
		}

		if m := statusRe.FindStringSubmatch(line); m != nil {
			task.Status = parseStatus(m[1], &warnings)
			continue
		}
		if m := lastRunRe.FindStringSubmatch(line); m != nil {
			task.LastRun = parseTime(m[1], &warnings)
			continue
		}
		if m := nextRunRe.FindStringSubmatch(line); m != nil {
			task.NextRun = parseTime(m[1], &warnings)
			continue
		}
		if m := durationRe.FindStringSubmatch(line); m != nil {
			task.Duration = parseDuration(m[1], &warnings)
			continue
		}
		if m := resultRe.FindStringSubmatch(line); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" && v != "-" {
				task.ResultSummary = v
			}
			continue
		}
		if m := totalRunsRe.FindStringSubmatch(line); m != nil {
			task.TotalRuns = parseInt(m[1], &warnings)
			continue
		}
		if m := successfulRe.FindStringSubmatch(line); m != nil {
			task.SuccessfulRuns = parseInt(m[1], &warnings)
			continue
		}
		if m := failedRe.FindStringSubmatch(line); m != nil {
			task.FailedRuns = parseInt(m[1], &warnings)
			continue
		}
		if m := lastFailureRe.FindStringSubmatch(line); m != nil {
			task.LastFailure = parseTime(m[1], &warnings)
			continue
		}
	}

	task.Params = extractParams(lines, sec)
	task.History = extractHistory(lines, sec, &warnings)

	normalizeLoadedTask(task, &warnings)
	return task, warnings
}

// normalizeLoadedTask enforces the load invariants: a document must
// never yield a running task (a crash artifact is demoted to its prior
// terminal status), and total runs always equals successes + failures.
func normalizeLoadedTask(task *core.Task, warnings *[]string) {
	if task.Status == core.StatusRunning {
		prior := core.StatusNeverRun
		switch {
		case task.TotalRuns == 0:
			prior = core.StatusNeverRun
		case task.LastFailure != nil && (task.LastRun == nil || !task.LastFailure.Before(*task.LastRun)):
			prior = core.StatusFailed
		case task.SuccessfulRuns > 0:
			prior = core.StatusSuccess
		default:
			prior = core.StatusFailed
		}
		*warnings = append(*warnings, fmt.Sprintf("status 'running' found on load (crash artifact), normalized to %q", prior))
		task.Status = prior
	}
	if task.TotalRuns != task.SuccessfulRuns+task.FailedRuns {
		*warnings = append(*warnings, fmt.Sprintf("total runs %d != %d successful + %d failed, corrected",
			task.TotalRuns, task.SuccessfulRuns, task.FailedRuns))
		task.TotalRuns = task.SuccessfulRuns + task.FailedRuns
	}
}

func extractParams(lines []string, sec Section) []core.Param {
	s, e, _, ok := findSubsection(lines, sec.Start, sec.End, LabelParameters)
	if !ok {
		return nil
	}
	var params []core.Param
	for i := s + 1; i < e; i++ {
		m := paramRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		params = append(params, core.Param{
			Key:   core.NormalizeParamKey(m[1]),
			Value: m[2],
		})
	}
	return params
}

func extractHistory(lines []string, sec Section, warnings *[]string) []core.HistoryEntry {
	s, e, _, ok := findSubsection(lines, sec.Start, sec.End, LabelRunHistory)
	if !ok {
		return nil
	}
	var entries []core.HistoryEntry
	for i := s + 1; i < e; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "|---") || strings.HasPrefix(line, "| ---") || strings.HasPrefix(line, "|-") {
			continue
		}
		m := historyRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.EqualFold(m[1], "Time") {
			continue
		}
		ts, err := time.ParseInLocation(TimeLayout, m[1], time.Local)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("unparsable run history row time %q, row dropped", m[1]))
			continue
		}
		entry := core.HistoryEntry{Time: ts, Status: rowStatus(m[2])}
		if d := parseDuration(m[3], warnings); d != nil {
			entry.Duration = *d
		}
		if link := wikiLinkRe.FindStringSubmatch(m[4]); link != nil {
			entry.Report = link[1]
		}
		entries = append(entries, entry)
	}
	return entries
}

func rowStatus(cell string) core.TaskStatus {
	if strings.Contains(cell, "✅") || strings.EqualFold(strings.TrimSpace(cell), "success") {
		return core.StatusSuccess
	}
	return core.StatusFailed
}

// statusGlyphs are the decorative prefixes tolerated in front of a
// status value.
var statusGlyphs = []string{"✅", "❌", "🔄", "⏳"}

func parseStatus(value string, warnings *[]string) core.TaskStatus {
	cleaned := strings.TrimSpace(value)
	for _, glyph := range statusGlyphs {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, glyph))
	}
	switch strings.ToLower(cleaned) {
	case "success", "succeeded", "ok":
		return core.StatusSuccess
	case "failed", "failure", "error":
		return core.StatusFailed
	case "running", "in progress", "in_progress":
		return core.StatusRunning
	case "never run", "never_run", "pending", "-", "":
		return core.StatusNeverRun
	}
	*warnings = append(*warnings, fmt.Sprintf("unknown task status %q, defaulting to never_run", value))
	return core.StatusNeverRun
}

func parseTime(value string, warnings *[]string) *time.Time {
	cleaned := strings.TrimSpace(value)
	switch cleaned {
	case "-", "", "Never", "never", "N/A", "n/a":
		return nil
	}
	if t, err := time.Parse(time.RFC3339, cleaned); err == nil {
		return &t
	}
	// Document timestamps carry no zone; treat them as local wall time
	// so comparisons against time.Now line up.
	for _, layout := range []string{TimeLayout, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, cleaned, time.Local); err == nil {
			return &t
		}
	}
	*warnings = append(*warnings, fmt.Sprintf("cannot parse timestamp %q", value))
	return nil
}

func parseDuration(value string, warnings *[]string) *time.Duration {
	cleaned := strings.TrimSpace(value)
	switch cleaned {
	case "-", "", "N/A":
		return nil
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "s"))
	secs, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("cannot parse duration %q", value))
		return nil
	}
	d := time.Duration(secs * float64(time.Second))
	return &d
}

func parseInt(value string, warnings *[]string) int {
	cleaned := strings.TrimSpace(value)
	switch cleaned {
	case "-", "", "N/A":
		return 0
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("cannot parse integer %q", value))
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
