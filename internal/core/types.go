package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// TaskStatus describes the lifecycle state of a task as recorded in its
// document.
type TaskStatus string

const (
	StatusNeverRun TaskStatus = "never_run"
	StatusRunning  TaskStatus = "running"
	StatusSuccess  TaskStatus = "success"
	StatusFailed   TaskStatus = "failed"
)

// Param is a single normalized key/value pair from a task's Parameters
// section. Order matters: parameters are serialized in document order.
type Param struct {
	Key   string
	Value string
}

// HistoryEntry is one row of a task's Run History table, newest first.
type HistoryEntry struct {
	Time     time.Time
	Status   TaskStatus
	Duration time.Duration
	// Report is the report document name (without extension) referenced
	// by the row, or empty when the run produced no report.
	Report string
}

// MaxHistoryEntries caps the Run History table. Recording a run beyond
// the cap evicts the oldest entry.
const MaxHistoryEntries = 20

// MaxSummaryLen bounds the inline Result field written back into the
// task document. Full output goes to the report file.
const MaxSummaryLen = 200

// SourceLocation identifies where a task's section lives on disk. The
// line range is a fast path for rewriting; it is re-derived by scanning
// whenever it goes stale.
type SourceLocation struct {
	Path      string
	StartLine int // inclusive
	EndLine   int // exclusive
}

// Task is a single automation task parsed from a markdown document. The
// definition fields (Command, Schedule, Params) are only ever edited by
// a human; everything under state and statistics is system-managed.
type Task struct {
	ID    string
	Title string

	// Definition
	Command  string
	Schedule string
	Params   []Param

	// State
	Status        TaskStatus
	LastRun       *time.Time
	NextRun       *time.Time
	Duration      *time.Duration
	ResultSummary string

	// Statistics
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastFailure    *time.Time

	History []HistoryEntry

	Source SourceLocation
}

// FailureKind classifies why an execution did not succeed.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureExit    FailureKind = "exit"
	FailureTimeout FailureKind = "timeout"
	FailureSpawn   FailureKind = "spawn"
)

// ExecutionResult captures the outcome of running one task command. The
// gateway returns one in every case, including timeout and spawn
// failure; it never returns an error.
type ExecutionResult struct {
	TaskID     string
	ExitCode   int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Failure    FailureKind
	// ErrorMessage is a human-readable description for non-success
	// outcomes (stderr tail, timeout note, or spawn error).
	ErrorMessage string
}

// Succeeded reports whether the command exited zero without timing out.
func (r ExecutionResult) Succeeded() bool {
	return r.Failure == FailureNone
}

// Summary returns the bounded single-line preview recorded in the task
// document: the error message for failures, otherwise the first portion
// of stdout (or stderr when stdout is empty).
func (r ExecutionResult) Summary() string {
	var text string
	switch {
	case !r.Succeeded() && r.ErrorMessage != "":
		text = r.ErrorMessage
	case r.Stdout != "":
		text = r.Stdout
	case r.Stderr != "":
		text = r.Stderr
	default:
		return ""
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(TruncateSummary(text))
}

// TruncateSummary bounds text to MaxSummaryLen bytes without splitting
// a multibyte rune; the cut backs up to the nearest rune boundary.
func TruncateSummary(text string) string {
	if len(text) <= MaxSummaryLen {
		return text
	}
	cut := MaxSummaryLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// SystemState is the vault-wide singleton persisted in the state
// document. A zero LastStartup means the system has never run before,
// which disables the catch-up window.
type SystemState struct {
	LastStartup     time.Time
	Version         int
	TotalTasks      int
	TotalExecutions int
	TotalSuccessful int
	TotalFailed     int
}
