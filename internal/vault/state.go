package vault

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"vaulttasks/internal/core"
	"vaulttasks/internal/document"
)

// StateVersion is the format version written into the state header.
const StateVersion = 1

// StateStore persists the vault-wide SystemState in a single markdown
// document: a YAML frontmatter header holds the authoritative values, a
// short human-readable body follows. Malformed or missing prior state
// is treated as absent, never fatal.
type StateStore struct {
	Path string

	log zerolog.Logger
}

// NewStateStore creates a store backed by the given file path.
func NewStateStore(path string, log zerolog.Logger) *StateStore {
	return &StateStore{Path: path, log: log}
}

type stateHeader struct {
	LastStartup     string `yaml:"last_startup"`
	Version         int    `yaml:"version"`
	TotalTasks      int    `yaml:"total_tasks"`
	TotalExecutions int    `yaml:"total_executions"`
	TotalSuccessful int    `yaml:"total_successful"`
	TotalFailed     int    `yaml:"total_failed"`
}

// Load reads the persisted state. Absence or corruption yields the
// zero-valued default: no catch-up window, zero counters.
func (s *StateStore) Load() core.SystemState {
	state := core.SystemState{Version: StateVersion}

	content, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Str("path", s.Path).Err(err).Msg("cannot read state file, using defaults")
		}
		return state
	}

	parts := strings.SplitN(string(content), "---", 3)
	if len(parts) < 3 {
		s.log.Warn().Str("path", s.Path).Msg("state file has no frontmatter, using defaults")
		return state
	}

	var header stateHeader
	if err := yaml.Unmarshal([]byte(parts[1]), &header); err != nil {
		s.log.Warn().Str("path", s.Path).Err(err).Msg("invalid state frontmatter, using defaults")
		return state
	}

	if header.LastStartup != "" {
		t, err := time.Parse(time.RFC3339, header.LastStartup)
		if err != nil {
			s.log.Warn().Str("path", s.Path).Str("last_startup", header.LastStartup).Msg("invalid last_startup, using defaults")
			return state
		}
		state.LastStartup = t
	}
	if header.Version > 0 {
		state.Version = header.Version
	}
	state.TotalTasks = header.TotalTasks
	state.TotalExecutions = header.TotalExecutions
	state.TotalSuccessful = header.TotalSuccessful
	state.TotalFailed = header.TotalFailed
	return state
}

// Save writes the state atomically. The header is authoritative; the
// body is cosmetic.
func (s *StateStore) Save(state core.SystemState) error {
	header := stateHeader{
		LastStartup:     state.LastStartup.Format(time.RFC3339),
		Version:         StateVersion,
		TotalTasks:      state.TotalTasks,
		TotalExecutions: state.TotalExecutions,
		TotalSuccessful: state.TotalSuccessful,
		TotalFailed:     state.TotalFailed,
	}
	front, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal state header: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString("# Task Runner State\n\n")
	fmt.Fprintf(&b, "**Last Startup:** %s\n\n", state.LastStartup.Format(document.TimeLayout))
	fmt.Fprintf(&b, "**Executions:** %d total, %d successful, %d failed\n\n",
		state.TotalExecutions, state.TotalSuccessful, state.TotalFailed)
	b.WriteString("⚠️ This file is managed automatically. Manual edits may be overwritten.\n")

	if err := atomicWrite(s.Path, []byte(b.String())); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
