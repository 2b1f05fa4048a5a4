package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaulttasks/internal/core"
)

func newTestStateStore(t *testing.T) *StateStore {
	t.Helper()
	return NewStateStore(filepath.Join(t.TempDir(), "Task Runner.md"), zerolog.Nop())
}

func TestStateLoadMissingFileYieldsDefaults(t *testing.T) {
	store := newTestStateStore(t)

	state := store.Load()
	assert.True(t, state.LastStartup.IsZero())
	assert.Equal(t, StateVersion, state.Version)
	assert.Zero(t, state.TotalExecutions)
}

func TestStateLoadMalformedYieldsDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "# Task Runner State\n\nJust a body.\n"},
		{"broken yaml", "---\nlast_startup: [not\n---\n"},
		{"bad timestamp", "---\nlast_startup: yesterday-ish\nversion: 1\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStateStore(t)
			require.NoError(t, os.WriteFile(store.Path, []byte(tt.content), 0o644))

			state := store.Load()
			assert.True(t, state.LastStartup.IsZero())
			assert.Zero(t, state.TotalExecutions)
		})
	}
}

func TestStateSaveLoadRoundTrip(t *testing.T) {
	store := newTestStateStore(t)

	want := core.SystemState{
		LastStartup:     time.Date(2024, 3, 10, 12, 30, 0, 0, time.Local),
		TotalTasks:      4,
		TotalExecutions: 42,
		TotalSuccessful: 40,
		TotalFailed:     2,
	}
	require.NoError(t, store.Save(want))

	got := store.Load()
	assert.True(t, got.LastStartup.Equal(want.LastStartup))
	assert.Equal(t, StateVersion, got.Version)
	assert.Equal(t, want.TotalTasks, got.TotalTasks)
	assert.Equal(t, want.TotalExecutions, got.TotalExecutions)
	assert.Equal(t, want.TotalSuccessful, got.TotalSuccessful)
	assert.Equal(t, want.TotalFailed, got.TotalFailed)
}

func TestStateSaveWritesFrontmatterAndBody(t *testing.T) {
	store := newTestStateStore(t)

	state := core.SystemState{
		LastStartup:     time.Date(2024, 3, 10, 12, 30, 0, 0, time.Local),
		TotalExecutions: 7,
		TotalSuccessful: 6,
		TotalFailed:     1,
	}
	require.NoError(t, store.Save(state))

	content, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "---\n"))
	assert.Contains(t, text, "version: 1")
	assert.Contains(t, text, "total_executions: 7")
	assert.Contains(t, text, "# Task Runner State")
	assert.Contains(t, text, "**Last Startup:** 2024-03-10 12:30:00")
	assert.Contains(t, text, "managed automatically")
}
