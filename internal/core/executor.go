package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// DefaultCommandTimeout bounds a single command run when the task does
// not override it.
const DefaultCommandTimeout = 300 * time.Second

// ParamsPlaceholder marks where the JSON-encoded parameters are
// substituted into a command. Without it the JSON is appended.
const ParamsPlaceholder = "{{params}}"

// ShellGateway runs task commands through the system shell. Run always
// returns an ExecutionResult, never an error: non-zero exits, timeouts
// and spawn failures are all captured as failure kinds in the result.
type ShellGateway struct {
	Timeout    time.Duration
	WorkingDir string

	log zerolog.Logger
}

// NewShellGateway creates a gateway with the given per-run timeout.
// A non-positive timeout falls back to DefaultCommandTimeout.
func NewShellGateway(timeout time.Duration, workingDir string, log zerolog.Logger) *ShellGateway {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &ShellGateway{Timeout: timeout, WorkingDir: workingDir, log: log}
}

// PrepareCommand injects the task's parameters into its command line.
// Parameters are serialized as a compact JSON object (document order)
// and shell-quoted; the blob replaces ParamsPlaceholder when present,
// otherwise it is appended.
func PrepareCommand(command string, params []Param) string {
	if len(params) == 0 {
		return command
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(p.Key)
		v, _ := json.Marshal(p.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	quoted := shellquote.Join(buf.String())
	if strings.Contains(command, ParamsPlaceholder) {
		return strings.ReplaceAll(command, ParamsPlaceholder, quoted)
	}
	return command + " " + quoted
}

// Run executes the task's command and reports the outcome.
func (g *ShellGateway) Run(ctx context.Context, task *Task) ExecutionResult {
	commandLine := PrepareCommand(task.Command, task.Params)
	startedAt := time.Now()

	g.log.Info().Str("task", task.ID).Str("command", commandLine).Msg("executing task")

	cmd := shellCommand(ctx, commandLine)
	if g.WorkingDir != "" {
		cmd.Dir = g.WorkingDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		finished := time.Now()
		g.log.Error().Str("task", task.ID).Err(err).Msg("failed to spawn command")
		return ExecutionResult{
			TaskID:       task.ID,
			ExitCode:     -1,
			StartedAt:    startedAt,
			FinishedAt:   finished,
			Duration:     finished.Sub(startedAt),
			Failure:      FailureSpawn,
			ErrorMessage: err.Error(),
		}
	}

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(g.Timeout, func() {
		timedOut.Store(true)
		g.log.Warn().Str("task", task.ID).Dur("timeout", g.Timeout).Msg("command exceeded timeout, terminating")
		sendTermination(cmd.Process)
		time.AfterFunc(5*time.Second, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		})
	})

	waitErr := cmd.Wait()
	watchdog.Stop()
	finished := time.Now()

	result := ExecutionResult{
		TaskID:     task.ID,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		StartedAt:  startedAt,
		FinishedAt: finished,
		Duration:   finished.Sub(startedAt),
	}

	switch {
	case timedOut.Load():
		result.ExitCode = -1
		result.Failure = FailureTimeout
		result.ErrorMessage = fmt.Sprintf("command timed out after %s", g.Timeout)
		g.log.Error().Str("task", task.ID).Dur("elapsed", result.Duration).Msg("task timed out")
	case waitErr == nil:
		result.ExitCode = 0
		g.log.Info().Str("task", task.ID).Dur("elapsed", result.Duration).Msg("task succeeded")
	default:
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		result.Failure = FailureExit
		if msg := strings.TrimSpace(result.Stderr); msg != "" {
			result.ErrorMessage = msg
		} else {
			result.ErrorMessage = fmt.Sprintf("command exited with code %d", result.ExitCode)
		}
		g.log.Warn().Str("task", task.ID).Int("exit_code", result.ExitCode).Dur("elapsed", result.Duration).Msg("task failed")
	}
	return result
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command) // #nosec G204
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command) // #nosec G204
}

func sendTermination(process *os.Process) {
	if process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = process.Kill()
		return
	}
	_ = process.Signal(syscall.SIGTERM)
}
