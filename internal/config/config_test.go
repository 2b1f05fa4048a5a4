package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	for _, key := range []string{
		"VAULTTASKS_VAULT", "VAULTTASKS_TASKS_FOLDER", "VAULTTASKS_REPORTS_FOLDER",
		"VAULTTASKS_STATE_FILE", "VAULTTASKS_CHECK_INTERVAL", "VAULTTASKS_COMMAND_TIMEOUT",
		"VAULTTASKS_LOG_LEVEL", "VAULTTASKS_ADDR",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "Tasks", cfg.TasksFolder)
	assert.Equal(t, "Reports", cfg.ReportsFolder)
	assert.Equal(t, "Task Runner.md", cfg.StateFile)
	assert.Equal(t, 60*time.Second, cfg.CheckInterval)
	assert.Equal(t, 300*time.Second, cfg.CommandTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Addr)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("VAULTTASKS_VAULT", "/vault")
	t.Setenv("VAULTTASKS_TASKS_FOLDER", "Jobs")
	t.Setenv("VAULTTASKS_CHECK_INTERVAL", "30s")
	t.Setenv("VAULTTASKS_COMMAND_TIMEOUT", "2m")
	t.Setenv("VAULTTASKS_LOG_LEVEL", "debug")
	t.Setenv("VAULTTASKS_ADDR", "127.0.0.1:7080")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "/vault", cfg.VaultPath)
	assert.Equal(t, "Jobs", cfg.TasksFolder)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:7080", cfg.Addr)
}

func TestParseBadDurationFallsBack(t *testing.T) {
	t.Setenv("VAULTTASKS_CHECK_INTERVAL", "soon")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.CheckInterval)
}

func TestValidate(t *testing.T) {
	t.Run("empty vault path", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "VAULTTASKS_VAULT")
	})

	t.Run("missing directory", func(t *testing.T) {
		cfg := &Config{VaultPath: filepath.Join(t.TempDir(), "nope")}
		assert.Error(t, cfg.Validate())
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "vault.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		cfg := &Config{VaultPath: file}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("valid directory", func(t *testing.T) {
		cfg := &Config{VaultPath: t.TempDir()}
		assert.NoError(t, cfg.Validate())
	})
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{
		VaultPath:     "/vault",
		TasksFolder:   "Tasks",
		ReportsFolder: "Reports",
		StateFile:     "Task Runner.md",
	}
	assert.Equal(t, filepath.Join("/vault", "Tasks"), cfg.TasksPath())
	assert.Equal(t, filepath.Join("/vault", "Reports"), cfg.ReportsPath())
	assert.Equal(t, filepath.Join("/vault", "Task Runner.md"), cfg.StatePath())
}
