package core

import (
	"sort"
	"time"
)

// DueReason records why a task entered the due set, for logging and
// reports. A task that missed any number of windows during downtime
// still runs exactly once: recovery over precision.
type DueReason string

const (
	DueNeverRun DueReason = "never_run"
	DueSchedule DueReason = "scheduled"
	DueMissed   DueReason = "missed_window"
)

// DueTask pairs a task with the reason it is due this cycle.
type DueTask struct {
	Task   *Task
	Reason DueReason
}

// InvalidTask is a task whose schedule the cron evaluator rejected. It
// is excluded from due computation until a human fixes the expression.
type InvalidTask struct {
	Task *Task
	Err  error
}

// IsDue reports whether a task should run at the given instant:
//
//	status != running && (never_run || next_run <= now)
//
// "due" is a computed predicate, never a stored state. A task whose
// NextRun is unset and which has already run is not due until its next
// fire time is recomputed.
func IsDue(t *Task, now time.Time) bool {
	if t.Status == StatusRunning {
		return false
	}
	if t.Status == StatusNeverRun {
		return true
	}
	return t.NextRun != nil && !t.NextRun.After(now)
}

// ComputeDue returns the due set for one cycle, ordered by task ID so
// execution order is deterministic. lastObserved is the persisted "last
// observed time"; a zero value means first-ever startup, in which case
// there is no catch-up window and only currently-due or never-run tasks
// fire. Each task appears at most once regardless of how many schedule
// windows elapsed while the process was down.
func ComputeDue(tasks []*Task, lastObserved, now time.Time) []DueTask {
	due := make([]DueTask, 0, len(tasks))
	for _, t := range tasks {
		if !IsDue(t, now) {
			continue
		}
		reason := DueSchedule
		switch {
		case t.Status == StatusNeverRun:
			reason = DueNeverRun
		case !lastObserved.IsZero() && t.NextRun != nil && t.NextRun.Before(lastObserved):
			reason = DueMissed
		}
		due = append(due, DueTask{Task: t, Reason: reason})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Task.ID < due[j].Task.ID })
	return due
}

// ValidateAll partitions tasks by whether the cron evaluator accepts
// their schedule. Invalid entries never crash validation of the rest.
func ValidateAll(tasks []*Task) (valid []*Task, invalid []InvalidTask) {
	for _, t := range tasks {
		if _, err := ParseSchedule(t.Schedule); err != nil {
			invalid = append(invalid, InvalidTask{Task: t, Err: err})
			continue
		}
		valid = append(valid, t)
	}
	return valid, invalid
}
