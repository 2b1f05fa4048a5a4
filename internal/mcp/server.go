// Package mcp exposes the task vault over the Model Context Protocol so
// that assistants can inspect and trigger tasks through stdio.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"vaulttasks/internal/core"
	"vaulttasks/internal/document"
)

// MCPServer serves vault task tools over stdio.
type MCPServer struct {
	engine *core.Engine
	log    zerolog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(engine *core.Engine, log zerolog.Logger) *MCPServer {
	return &MCPServer{
		engine: engine,
		log:    log,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"vaulttasks",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.log.Info().Msg("MCP server starting on stdio")

	return server.ServeStdio(mcpServer)
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	// vault_list_tasks
	mcpServer.AddTool(mcp.NewTool("vault_list_tasks",
		mcp.WithDescription("List all tasks defined in the markdown vault, including status and schedule"),
		mcp.WithString("status",
			mcp.Description("Filter by status: never_run, running, success or failed"),
			mcp.Enum("never_run", "running", "success", "failed"),
		),
	), s.handleListTasks)

	// vault_get_task
	mcpServer.AddTool(mcp.NewTool("vault_get_task",
		mcp.WithDescription("Get full details of a single task, including statistics and run history"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID, e.g. 'daily-backup' or 'jobs#sync-notes'"),
		),
	), s.handleGetTask)

	// vault_run_task
	mcpServer.AddTool(mcp.NewTool("vault_run_task",
		mcp.WithDescription("Run a task immediately and update its document with the result"),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("Task ID or a unique fragment of the task title"),
		),
	), s.handleRunTask)

	// vault_cron_preview
	mcpServer.AddTool(mcp.NewTool("vault_cron_preview",
		mcp.WithDescription("Preview the upcoming fire times of a 5-field cron expression"),
		mcp.WithString("cron",
			mcp.Required(),
			mcp.Description("Cron expression, e.g. '0 9 * * 1-5' for weekdays at 09:00"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of fire times to return, default 5"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), s.handleCronPreview)

	s.log.Info().Int("count", 4).Msg("MCP tools registered")
}

// handleListTasks handles the vault_list_tasks tool call.
func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statusFilter := mcp.ParseString(request, "status", "")

	tasks, err := s.engine.Snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks")
		return mcp.NewToolResultError(fmt.Sprintf("failed to load tasks: %v", err)), nil
	}

	filtered := tasks
	if statusFilter != "" {
		filtered = nil
		for _, t := range tasks {
			if string(t.Status) == statusFilter {
				filtered = append(filtered, t)
			}
		}
	}

	if len(filtered) == 0 {
		return mcp.NewToolResultText("No tasks found"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):\n\n", len(filtered))
	for _, t := range filtered {
		fmt.Fprintf(&b, "%s %s\n", statusIcon(t.Status), t.ID)
		fmt.Fprintf(&b, "  Title: %s\n", t.Title)
		fmt.Fprintf(&b, "  Schedule: %s\n", t.Schedule)
		fmt.Fprintf(&b, "  Command: %s\n", truncate(t.Command, 60))
		if t.NextRun != nil {
			fmt.Fprintf(&b, "  Next run: %s\n", document.FormatTime(t.NextRun))
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

// handleGetTask handles the vault_get_task tool call.
func (s *MCPServer) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	tasks, err := s.engine.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load tasks: %v", err)), nil
	}

	var task *core.Task
	for _, t := range tasks {
		if t.ID == taskID {
			task = t
			break
		}
	}
	if task == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task ID: %s\n", task.ID)
	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	fmt.Fprintf(&b, "Status: %s\n", document.FormatStatus(task.Status))
	fmt.Fprintf(&b, "Command: %s\n", task.Command)
	fmt.Fprintf(&b, "Schedule: %s\n", task.Schedule)
	for _, p := range task.Params {
		fmt.Fprintf(&b, "Parameter %s: %s\n", p.Key, p.Value)
	}
	fmt.Fprintf(&b, "Last run: %s\n", document.FormatTime(task.LastRun))
	fmt.Fprintf(&b, "Next run: %s\n", document.FormatTime(task.NextRun))
	fmt.Fprintf(&b, "Total runs: %d (%d ok, %d failed)\n", task.TotalRuns, task.SuccessfulRuns, task.FailedRuns)
	if task.ResultSummary != "" {
		fmt.Fprintf(&b, "Last result: %s\n", task.ResultSummary)
	}
	fmt.Fprintf(&b, "Source: %s\n", task.Source.Path)

	if len(task.History) > 0 {
		b.WriteString("\nRecent runs:\n")
		for _, h := range task.History {
			fmt.Fprintf(&b, "  %s  %s  %s\n",
				h.Time.Format(document.TimeLayout),
				document.FormatStatus(h.Status),
				document.FormatDuration(&h.Duration))
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

// handleRunTask handles the vault_run_task tool call.
func (s *MCPServer) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := mcp.ParseString(request, "task", "")
	if ref == "" {
		return mcp.NewToolResultError("task reference is required"), nil
	}

	task, result, err := s.engine.RunTaskNow(ctx, ref)
	if err != nil {
		s.log.Error().Str("task", ref).Err(err).Msg("run task")
		return mcp.NewToolResultError(fmt.Sprintf("failed to run task: %v", err)), nil
	}

	outcome := "succeeded"
	if !result.Succeeded() {
		outcome = "failed"
	}
	text := fmt.Sprintf("Task %s %s\nExit code: %d\nDuration: %.1fs",
		task.ID, outcome, result.ExitCode, result.Duration.Seconds())
	if summary := result.Summary(); summary != "" {
		text += "\nResult: " + summary
	}

	return mcp.NewToolResultText(text), nil
}

// handleCronPreview handles the vault_cron_preview tool call.
func (s *MCPServer) handleCronPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cronExpr := mcp.ParseString(request, "cron", "")

	schedule, err := core.ParseSchedule(cronExpr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", err)), nil
	}

	count := int(mcp.ParseFloat64(request, "count", 5))
	if count <= 0 || count > 10 {
		count = 5
	}

	times := core.NextOccurrences(schedule, time.Now(), count)
	var b strings.Builder
	fmt.Fprintf(&b, "Next %d fire time(s) for %q:\n", len(times), cronExpr)
	for _, t := range times {
		fmt.Fprintf(&b, "  %s\n", t.Format(document.TimeLayout))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func statusIcon(status core.TaskStatus) string {
	switch status {
	case core.StatusSuccess:
		return "✅"
	case core.StatusFailed:
		return "❌"
	case core.StatusRunning:
		return "🔄"
	default:
		return "⏳"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
