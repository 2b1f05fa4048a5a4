package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Repository is the file-system-facing facade over the task documents.
// Implementations load a fresh snapshot per call and write results back
// atomically.
type Repository interface {
	// LoadAll parses every task document under the tasks root, ordered
	// by task ID. It only fails when the root itself is unusable;
	// individual unparsable files are skipped with a warning.
	LoadAll(ctx context.Context) ([]*Task, error)
	// RecordResult re-reads the task's document, folds the result into
	// its state, statistics and run history, and rewrites the file
	// atomically. nextRun is the recomputed fire time; reportName links
	// the history row to the run's report (empty for none).
	RecordResult(task *Task, result ExecutionResult, nextRun *time.Time, reportName string) error
	// CreateReport writes the run's report document and returns its
	// name (without extension) for wiki-linking.
	CreateReport(task *Task, result ExecutionResult) (string, error)
}

// StateStore persists the vault-wide SystemState. Load returns defaults
// when no usable prior state exists.
type StateStore interface {
	Load() SystemState
	Save(state SystemState) error
}

// Gateway runs a task's command. It never returns an error; every
// outcome is an ExecutionResult.
type Gateway interface {
	Run(ctx context.Context, task *Task) ExecutionResult
}

// Notifier delivers out-of-band failure notifications. Implementations
// must tolerate being called rarely and failing silently.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// CycleReport summarizes one scheduler cycle.
type CycleReport struct {
	Loaded    int
	Invalid   int
	Due       int
	Succeeded int
	Failed    int
}

// Engine drives the load -> due -> execute -> record -> save loop. Each
// cycle operates on a freshly loaded snapshot; tasks run strictly
// sequentially in ID order. mu serializes all execution, so a manual
// run arriving while a cycle is in flight waits its turn, and two
// manual runs never interleave document writes. running tracks in-flight
// task IDs so a duplicate manual run is rejected instead of queued.
type Engine struct {
	repo     Repository
	state    StateStore
	gateway  Gateway
	notifier Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	running sync.Map
}

// NewEngine wires the engine's collaborators. notifier may be nil.
func NewEngine(repo Repository, state StateStore, gateway Gateway, notifier Notifier, log zerolog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		state:    state,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

// Snapshot returns a freshly parsed view of all tasks.
func (e *Engine) Snapshot(ctx context.Context) ([]*Task, error) {
	return e.repo.LoadAll(ctx)
}

// RunCycle performs one full scheduling cycle at the given instant and
// persists the new observed time. Nothing a single task does can abort
// the cycle; per-task failures are recorded in that task's document.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	tasks, err := e.repo.LoadAll(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("load tasks: %w", err)
	}

	valid, invalid := ValidateAll(tasks)
	for _, inv := range invalid {
		e.log.Warn().Str("task", inv.Task.ID).Err(inv.Err).Msg("schedule rejected, task excluded from this cycle")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state.Load()
	due := ComputeDue(valid, state.LastStartup, now)

	report := CycleReport{Loaded: len(tasks), Invalid: len(invalid), Due: len(due)}
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		e.log.Info().Str("task", d.Task.ID).Str("reason", string(d.Reason)).Msg("task due")
		result := e.runOne(ctx, d.Task)
		if result.Succeeded() {
			report.Succeeded++
			state.TotalSuccessful++
		} else {
			report.Failed++
			state.TotalFailed++
		}
		state.TotalExecutions++
	}

	state.LastStartup = now
	state.TotalTasks = len(tasks)
	if err := e.state.Save(state); err != nil {
		e.log.Error().Err(err).Msg("failed to save system state")
	}
	return report, nil
}

// RunTaskNow executes a single task immediately, outside the schedule.
// ref matches a task ID exactly or a title case-insensitively
// (substring match, must be unambiguous). The observed time is not
// advanced: manual runs do not affect catch-up.
func (e *Engine) RunTaskNow(ctx context.Context, ref string) (*Task, ExecutionResult, error) {
	tasks, err := e.repo.LoadAll(ctx)
	if err != nil {
		return nil, ExecutionResult{}, fmt.Errorf("load tasks: %w", err)
	}
	task, err := matchTask(tasks, ref)
	if err != nil {
		return nil, ExecutionResult{}, err
	}
	return e.runMatched(ctx, task)
}

// RunTaskByID executes a single task immediately, matched by exact ID
// only. Callers passing untrusted identifiers (the HTTP API) use this
// instead of RunTaskNow so an unknown ID can never fuzzy-match a title.
func (e *Engine) RunTaskByID(ctx context.Context, id string) (*Task, ExecutionResult, error) {
	tasks, err := e.repo.LoadAll(ctx)
	if err != nil {
		return nil, ExecutionResult{}, fmt.Errorf("load tasks: %w", err)
	}
	for _, t := range tasks {
		if t.ID == id {
			return e.runMatched(ctx, t)
		}
	}
	return nil, ExecutionResult{}, fmt.Errorf("no task matching %q", id)
}

// runMatched guards and serializes a single matched task run. A task
// already in flight (in this cycle or another manual run) is rejected
// rather than queued; everything else waits for the engine mutex.
func (e *Engine) runMatched(ctx context.Context, task *Task) (*Task, ExecutionResult, error) {
	if task.Status == StatusRunning {
		return task, ExecutionResult{}, fmt.Errorf("task %q is already running", task.ID)
	}
	if _, busy := e.running.LoadOrStore(task.ID, struct{}{}); busy {
		return task, ExecutionResult{}, fmt.Errorf("task %q is already running", task.ID)
	}
	defer e.running.Delete(task.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	result := e.runOne(ctx, task)
	return task, result, nil
}

// runOne executes a task, writes its report, records the result into
// the document and recomputes the next fire time from the completion
// instant. Report failures never block the statistics write.
func (e *Engine) runOne(ctx context.Context, task *Task) ExecutionResult {
	e.running.Store(task.ID, struct{}{})
	defer e.running.Delete(task.ID)

	result := e.gateway.Run(ctx, task)

	var nextRun *time.Time
	if next, err := NextAfter(task.Schedule, result.FinishedAt); err == nil {
		nextRun = &next
	} else {
		e.log.Warn().Str("task", task.ID).Err(err).Msg("cannot recompute next run")
	}

	reportName, err := e.repo.CreateReport(task, result)
	if err != nil {
		e.log.Warn().Str("task", task.ID).Err(err).Msg("report write failed, recording result without report link")
		reportName = ""
	}

	if err := e.repo.RecordResult(task, result, nextRun, reportName); err != nil {
		e.log.Error().Str("task", task.ID).Err(err).Msg("failed to record result in task document")
	}

	if !result.Succeeded() && e.notifier != nil {
		title := fmt.Sprintf("Task failed: %s", task.Title)
		body := result.Summary()
		if err := e.notifier.Send(ctx, title, body); err != nil {
			e.log.Warn().Str("task", task.ID).Err(err).Msg("failure notification not delivered")
		}
	}
	return result
}

func matchTask(tasks []*Task, ref string) (*Task, error) {
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
	}
	needle := strings.ToLower(ref)
	var matches []*Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no task matching %q", ref)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Title)
		}
		return nil, fmt.Errorf("multiple tasks match %q: %s", ref, strings.Join(names, ", "))
	}
}
