package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaulttasks/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		VaultPath:     t.TempDir(),
		TasksFolder:   "Tasks",
		ReportsFolder: "Reports",
		StateFile:     "Task Runner.md",
		LogLevel:      "error",
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cli := New(cfg)
	out := new(bytes.Buffer)
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetErr(out)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestInitCmdCreatesLayout(t *testing.T) {
	cfg := testConfig(t)
	out, err := execute(t, cfg, "init")
	require.NoError(t, err)

	assert.Contains(t, out, "Initialised vault")
	assert.DirExists(t, cfg.TasksPath())
	assert.DirExists(t, cfg.ReportsPath())
	assert.FileExists(t, filepath.Join(cfg.TasksPath(), "Example Task.md"))
}

func TestInitCmdKeepsExistingTasks(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TasksPath(), 0o755))
	existing := filepath.Join(cfg.TasksPath(), "Mine.md")
	require.NoError(t, os.WriteFile(existing, []byte("# Mine\n"), 0o644))

	_, err := execute(t, cfg, "init")
	require.NoError(t, err)

	assert.FileExists(t, existing)
	assert.NoFileExists(t, filepath.Join(cfg.TasksPath(), "Example Task.md"))
}

func TestListCmd(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TasksPath(), 0o755))
	doc := "# Backup Docs\n\n- Command: `echo hi`\n- Schedule: 0 2 * * *\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TasksPath(), "Backup Docs.md"), []byte(doc), 0o644))

	out, err := execute(t, cfg, "list", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 task(s)")
	assert.Contains(t, out, "Backup Docs")
	assert.Contains(t, out, "Schedule: 0 2 * * *")
}

func TestListCmdEmptyVault(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TasksPath(), 0o755))

	out, err := execute(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found")
}

func TestRunCmdWritesResultBack(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TasksPath(), 0o755))
	path := filepath.Join(cfg.TasksPath(), "Echo.md")
	doc := "# Echo\n\n- Command: `echo ran-from-test`\n- Schedule: 0 2 * * *\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, cfg, "run", "echo")
	require.NoError(t, err)
	assert.Contains(t, out, "Success")
	assert.Contains(t, out, "ran-from-test")

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "- Status: ✅ Success")
	assert.Contains(t, string(updated), "- Total Runs: 1")

	// A report lands in the reports folder.
	entries, err := os.ReadDir(cfg.ReportsPath())
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunCmdRequiresReference(t *testing.T) {
	_, err := execute(t, testConfig(t), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task name or --file")
}

func TestRunCmdByFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TasksPath(), 0o755))
	path := filepath.Join(cfg.TasksPath(), "Echo.md")
	doc := "# Echo\n\n- Command: `echo file-mode`\n- Schedule: 0 2 * * *\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, cfg, "run", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "file-mode")
}
