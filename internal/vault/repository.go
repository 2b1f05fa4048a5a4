package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vaulttasks/internal/core"
	"vaulttasks/internal/document"
)

// Repository loads task documents from the tasks directory and writes
// results back through the document model. Every operation works on a
// fresh read of the underlying file: nothing stale is ever written
// back.
type Repository struct {
	TasksDir   string
	ReportsDir string

	log zerolog.Logger
}

// NewRepository creates a repository rooted at the given directories.
func NewRepository(tasksDir, reportsDir string, log zerolog.Logger) *Repository {
	return &Repository{TasksDir: tasksDir, ReportsDir: reportsDir, log: log}
}

// LoadAll walks every markdown document under the tasks root and
// returns all parsed tasks ordered by ID. Hidden files and directories
// are skipped. Files or sections that fail to parse are skipped with a
// warning; only a missing tasks root is fatal.
func (r *Repository) LoadAll(ctx context.Context) ([]*core.Task, error) {
	info, err := os.Stat(r.TasksDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("tasks directory not found: %s", r.TasksDir)
	}

	var paths []string
	err = filepath.WalkDir(r.TasksDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			r.log.Warn().Str("path", path).Err(walkErr).Msg("cannot access path, skipping")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tasks directory: %w", err)
	}
	sort.Strings(paths)

	var tasks []*core.Task
	for _, path := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, ps := range r.parseFile(path) {
			tasks = append(tasks, ps.task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

type parsedSection struct {
	sec  document.Section
	task *core.Task
}

// parseFile reads one document and extracts every task section in it.
// Read or parse trouble is logged, never propagated.
func (r *Repository) parseFile(path string) []parsedSection {
	content, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn().Str("path", path).Err(err).Msg("cannot read task file, skipping")
		return nil
	}
	return r.parseBuffer(path, splitLines(string(content)))
}

// parseBuffer runs the document model over a line buffer and fills in
// identity and source location for each extracted task.
func (r *Repository) parseBuffer(path string, lines []string) []parsedSection {
	rel, err := filepath.Rel(r.TasksDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	sections := document.Locate(lines)
	multi := len(sections) > 1

	parsed := make([]parsedSection, 0, len(sections))
	for _, sec := range sections {
		task, warnings := document.Extract(lines, sec)
		for _, w := range warnings {
			r.log.Warn().Str("path", path).Str("section", sec.Title).Msg(w)
		}
		if task.Command == "" || task.Schedule == "" {
			continue
		}
		// Heading wins over filename when both are present; the
		// filename stem is the degenerate-case title.
		if task.Title == "" {
			task.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		task.ID = core.TaskID(rel, sec.Title, multi)
		task.Source = core.SourceLocation{Path: path, StartLine: sec.Start, EndLine: sec.End}
		parsed = append(parsed, parsedSection{sec: sec, task: task})
	}
	return parsed
}

// RecordResult folds an execution result into the task's document:
// statistics are recomputed from a fresh parse of the file, the run is
// prepended to the history (evicting beyond the cap), and the Current
// State, Statistics and Run History subsections are rewritten in one
// atomic file replacement. Content outside those subsections is
// untouched.
func (r *Repository) RecordResult(task *core.Task, result core.ExecutionResult, nextRun *time.Time, reportName string) error {
	path := task.Source.Path
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read task file: %w", err)
	}
	hadFinalNewline := strings.HasSuffix(string(content), "\n")
	lines := splitLines(string(content))

	fresh, err := r.findSection(path, lines, task.ID)
	if err != nil {
		return err
	}

	updated := applyResult(fresh.task, result, nextRun, reportName)

	// Each replacement can shift line numbers, so the section is
	// re-located between splices.
	for _, step := range []struct {
		label  string
		render func(depth int) []string
	}{
		{document.LabelCurrentState, func(d int) []string { return document.CurrentStateLines(updated, d) }},
		{document.LabelStatistics, func(d int) []string { return document.StatisticsLines(updated, d) }},
		{document.LabelRunHistory, func(d int) []string { return document.RunHistoryLines(updated.History, d) }},
	} {
		ps, err := r.findSection(path, lines, task.ID)
		if err != nil {
			return err
		}
		lines = document.ReplaceSection(lines, ps.sec, step.label, step.render)
	}

	// A file that ended without a newline keeps ending without one:
	// that final byte is outside the managed subsections.
	out := strings.Join(lines, "\n")
	if hadFinalNewline && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if err := atomicWrite(path, []byte(out)); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}

	r.log.Info().Str("task", task.ID).Str("path", path).Msg("recorded result in task document")
	*task = *updated
	return nil
}

// findSection re-locates a task's section in a freshly read buffer. The
// stored line range is only a hint; identity is what matters.
func (r *Repository) findSection(path string, lines []string, id string) (parsedSection, error) {
	for _, ps := range r.parseBuffer(path, lines) {
		if ps.task.ID == id {
			return ps, nil
		}
	}
	return parsedSection{}, fmt.Errorf("task section %q no longer present in %s", id, path)
}

// applyResult computes the task's next state from a fresh on-disk parse
// plus one execution result. The definition fields are carried over
// unchanged.
func applyResult(fresh *core.Task, result core.ExecutionResult, nextRun *time.Time, reportName string) *core.Task {
	updated := *fresh

	if result.Succeeded() {
		updated.Status = core.StatusSuccess
		updated.SuccessfulRuns = fresh.SuccessfulRuns + 1
	} else {
		updated.Status = core.StatusFailed
		updated.FailedRuns = fresh.FailedRuns + 1
		started := result.StartedAt
		updated.LastFailure = &started
	}
	updated.TotalRuns = fresh.TotalRuns + 1

	started := result.StartedAt
	duration := result.Duration
	updated.LastRun = &started
	updated.Duration = &duration
	updated.NextRun = nextRun
	updated.ResultSummary = result.Summary()

	entry := core.HistoryEntry{
		Time:     result.StartedAt,
		Status:   updated.Status,
		Duration: result.Duration,
		Report:   reportName,
	}
	history := append([]core.HistoryEntry{entry}, fresh.History...)
	if len(history) > core.MaxHistoryEntries {
		history = history[:core.MaxHistoryEntries]
	}
	updated.History = history

	return &updated
}

// splitLines splits a buffer into lines such that joining with "\n"
// reproduces the input byte for byte.
func splitLines(content string) []string {
	return strings.Split(content, "\n")
}
