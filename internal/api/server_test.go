package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaulttasks/internal/core"
)

type stubRepo struct {
	tasks []*core.Task
}

func (s *stubRepo) LoadAll(ctx context.Context) ([]*core.Task, error) { return s.tasks, nil }

func (s *stubRepo) RecordResult(task *core.Task, result core.ExecutionResult, nextRun *time.Time, reportName string) error {
	return nil
}

func (s *stubRepo) CreateReport(task *core.Task, result core.ExecutionResult) (string, error) {
	return "stub-report", nil
}

type stubState struct{}

func (stubState) Load() core.SystemState           { return core.SystemState{} }
func (stubState) Save(state core.SystemState) error { return nil }

type stubGateway struct{}

func (stubGateway) Run(ctx context.Context, task *core.Task) core.ExecutionResult {
	now := time.Now()
	return core.ExecutionResult{
		TaskID:     task.ID,
		Stdout:     "ran fine",
		StartedAt:  now,
		FinishedAt: now,
		Duration:   time.Second,
	}
}

func testServer(t *testing.T, authToken string, tasks []*core.Task) *Server {
	t.Helper()
	engine := core.NewEngine(&stubRepo{tasks: tasks}, stubState{}, stubGateway{}, nil, zerolog.Nop())
	return NewServer("127.0.0.1:0", authToken, engine, zerolog.Nop())
}

func sampleTasks() []*core.Task {
	next := time.Date(2024, 3, 11, 2, 0, 0, 0, time.Local)
	return []*core.Task{
		{
			ID:       "backup-docs",
			Title:    "Backup Docs",
			Command:  "backup.sh",
			Schedule: "0 2 * * *",
			Status:   core.StatusSuccess,
			NextRun:  &next,
		},
		{
			ID:       "sync-notes",
			Title:    "Sync Notes",
			Command:  "sync.sh",
			Schedule: "0 * * * *",
			Status:   core.StatusNeverRun,
		},
	}
}

func TestHealthz(t *testing.T) {
	s := testServer(t, "", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListTasks(t *testing.T) {
	s := testServer(t, "", sampleTasks())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "backup-docs", got[0].ID)
	assert.Equal(t, "success", got[0].Status)
	require.NotNil(t, got[0].NextRun)
	assert.Nil(t, got[1].NextRun)
}

func TestGetTask(t *testing.T) {
	s := testServer(t, "", sampleTasks())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks/sync-notes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Sync Notes", got.Title)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTask(t *testing.T) {
	s := testServer(t, "", sampleTasks())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks/backup-docs/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "backup-docs", got.TaskID)
	assert.True(t, got.Success)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks/ghost/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// The run route matches task IDs exactly; a title fragment is not
// enough to trigger an execution.
func TestRunTaskRequiresExactID(t *testing.T) {
	s := testServer(t, "", sampleTasks())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks/Backup/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks/backup/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTaskConflictWhenRunning(t *testing.T) {
	tasks := sampleTasks()
	tasks[0].Status = core.StatusRunning
	s := testServer(t, "", tasks)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks/backup-docs/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCronPreview(t *testing.T) {
	s := testServer(t, "", nil)

	body := strings.NewReader(`{"expr": "0 2 * * *", "now": "2024-03-10T12:00:00Z", "count": 3}`)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/cron/preview", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var got cronPreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Valid)
	assert.Len(t, got.NextTimes, 3)
}

func TestCronPreviewInvalidExpression(t *testing.T) {
	s := testServer(t, "", nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/cron/preview", strings.NewReader(`{"expr": "@daily"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got cronPreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Valid)
	assert.Contains(t, got.Message, "5-field")
}

func TestAuthMiddleware(t *testing.T) {
	s := testServer(t, "sekret", sampleTasks())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks?token=sekret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
