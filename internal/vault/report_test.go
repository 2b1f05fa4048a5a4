package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaulttasks/internal/core"
)

func TestCreateReportNameAndContent(t *testing.T) {
	repo, tasksDir := newTestVault(t)

	task := &core.Task{
		ID:      "backup-docs",
		Title:   "Backup Docs",
		Command: "backup.sh --docs",
		Source:  core.SourceLocation{Path: filepath.Join(tasksDir, "Backup Docs.md")},
	}
	result := core.ExecutionResult{
		ExitCode:   0,
		Stdout:     "copied 120 files\n",
		StartedAt:  time.Date(2024, 3, 10, 2, 0, 0, 0, time.Local),
		FinishedAt: time.Date(2024, 3, 10, 2, 0, 3, 0, time.Local),
		Duration:   3200 * time.Millisecond,
	}

	name, err := repo.CreateReport(task, result)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10-020000-backup-docs", name)

	content, err := os.ReadFile(filepath.Join(repo.ReportsDir, name+".md"))
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "# Backup Docs - Execution Report")
	assert.Contains(t, text, "**Executed:** 2024-03-10 02:00:00")
	assert.Contains(t, text, "**Duration:** 3.2 seconds")
	assert.Contains(t, text, "**Command:** `backup.sh --docs`")
	assert.Contains(t, text, "**Exit Code:** 0")
	assert.Contains(t, text, "**Status:** ✅ Success")
	assert.Contains(t, text, "copied 120 files")
	assert.Contains(t, text, "- Back to [[Backup Docs]]")
}

func TestCreateReportFailureIncludesErrors(t *testing.T) {
	repo, _ := newTestVault(t)

	task := &core.Task{ID: "flaky", Title: "Flaky", Command: "flaky.sh"}
	result := core.ExecutionResult{
		ExitCode:     1,
		Stderr:       "it broke\n",
		StartedAt:    time.Date(2024, 3, 10, 2, 0, 0, 0, time.Local),
		Duration:     time.Second,
		Failure:      core.FailureExit,
		ErrorMessage: "it broke",
	}

	name, err := repo.CreateReport(task, result)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(repo.ReportsDir, name+".md"))
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "**Status:** ❌ Failed")
	assert.Contains(t, text, "## Errors")
	assert.Contains(t, text, "it broke")
	assert.Contains(t, text, "(no output)")
}

func TestCreateReportRendersParameterTable(t *testing.T) {
	repo, _ := newTestVault(t)

	task := &core.Task{
		ID:      "param-job",
		Title:   "Param Job",
		Command: "run.sh {{params}}",
		Params: []core.Param{
			{Key: "target", Value: "/data"},
		},
	}
	result := core.ExecutionResult{StartedAt: time.Now(), Stdout: "ok"}

	name, err := repo.CreateReport(task, result)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(repo.ReportsDir, name+".md"))
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "## Parameters")
	assert.Contains(t, text, "| target | /data |")
	// The rendered command carries the substituted parameters.
	assert.Contains(t, text, `"target":"/data"`)
	assert.NotContains(t, text, "{{params}}")
}
