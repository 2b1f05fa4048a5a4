package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vaulttasks/internal/core"
)

type taskResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Command        string            `json:"command"`
	Schedule       string            `json:"schedule"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Status         string            `json:"status"`
	LastRun        *string           `json:"last_run,omitempty"`
	NextRun        *string           `json:"next_run,omitempty"`
	DurationSecs   *float64          `json:"duration_s,omitempty"`
	Result         string            `json:"result,omitempty"`
	TotalRuns      int               `json:"total_runs"`
	SuccessfulRuns int               `json:"successful_runs"`
	FailedRuns     int               `json:"failed_runs"`
	LastFailure    *string           `json:"last_failure,omitempty"`
	Source         string            `json:"source"`
}

type runResponse struct {
	TaskID   string  `json:"task_id"`
	ExitCode int     `json:"exit_code"`
	Success  bool    `json:"success"`
	Duration float64 `json:"duration_s"`
	Summary  string  `json:"summary,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load tasks")
		return
	}
	res := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskToResponse(t))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	tasks, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("get task")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load tasks")
		return
	}
	for _, t := range tasks {
		if t.ID == taskID {
			writeJSON(w, http.StatusOK, taskToResponse(t))
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "task not found")
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, result, err := s.engine.RunTaskByID(r.Context(), taskID)
	if err != nil {
		if strings.Contains(err.Error(), "no task matching") {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		if strings.Contains(err.Error(), "already running") {
			writeError(w, http.StatusConflict, "conflict", "task is already running")
			return
		}
		s.log.Error().Str("task", taskID).Err(err).Msg("run task")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to run task")
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		TaskID:   task.ID,
		ExitCode: result.ExitCode,
		Success:  result.Succeeded(),
		Duration: result.Duration.Seconds(),
		Summary:  result.Summary(),
	})
}

type cronPreviewRequest struct {
	Expr  string `json:"expr"`
	Now   string `json:"now,omitempty"`
	Count int    `json:"count,omitempty"`
}

type cronPreviewResponse struct {
	Valid     bool     `json:"valid"`
	NextTimes []string `json:"next_times,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func (s *Server) handleCronPreview(w http.ResponseWriter, r *http.Request) {
	var req cronPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cronPreviewResponse{Valid: false, Message: "invalid JSON payload"})
		return
	}
	expr := strings.TrimSpace(req.Expr)
	if expr == "" {
		writeJSON(w, http.StatusBadRequest, cronPreviewResponse{Valid: false, Message: "cron expression is required"})
		return
	}
	schedule, err := core.ParseSchedule(expr)
	if err != nil {
		writeJSON(w, http.StatusOK, cronPreviewResponse{Valid: false, Message: err.Error()})
		return
	}

	count := req.Count
	if count <= 0 || count > 10 {
		count = 5
	}
	base := time.Now()
	if req.Now != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Now); err == nil {
			base = parsed
		}
	}

	times := core.NextOccurrences(schedule, base, count)
	formatted := make([]string, 0, len(times))
	for _, t := range times {
		formatted = append(formatted, t.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, cronPreviewResponse{Valid: true, NextTimes: formatted})
}

func taskToResponse(t *core.Task) taskResponse {
	res := taskResponse{
		ID:             t.ID,
		Title:          t.Title,
		Command:        t.Command,
		Schedule:       t.Schedule,
		Status:         string(t.Status),
		Result:         t.ResultSummary,
		TotalRuns:      t.TotalRuns,
		SuccessfulRuns: t.SuccessfulRuns,
		FailedRuns:     t.FailedRuns,
		Source:         t.Source.Path,
	}
	if len(t.Params) > 0 {
		res.Parameters = make(map[string]string, len(t.Params))
		for _, p := range t.Params {
			res.Parameters[p.Key] = p.Value
		}
	}
	res.LastRun = formatTimePtr(t.LastRun)
	res.NextRun = formatTimePtr(t.NextRun)
	res.LastFailure = formatTimePtr(t.LastFailure)
	if t.Duration != nil {
		secs := t.Duration.Seconds()
		res.DurationSecs = &secs
	}
	return res
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
