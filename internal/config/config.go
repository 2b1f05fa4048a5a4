package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the daemon and CLI.
// Priority: CLI flags > environment variables > .env file > defaults.
type Config struct {
	// VaultPath is the root directory holding the task documents.
	VaultPath string
	// TasksFolder and ReportsFolder are relative to VaultPath.
	TasksFolder   string
	ReportsFolder string
	// StateFile is the system state document, relative to VaultPath.
	StateFile string

	CheckInterval  time.Duration
	CommandTimeout time.Duration
	LogLevel       string

	// Addr enables the HTTP status API when non-empty.
	Addr      string
	AuthToken string

	// BarkURL enables failure push notifications when non-empty.
	BarkURL string

	ShutdownGrace time.Duration
}

const (
	defaultTasksFolder    = "Tasks"
	defaultReportsFolder  = "Reports"
	defaultStateFile      = "Task Runner.md"
	defaultCheckInterval  = 60 * time.Second
	defaultCommandTimeout = 300 * time.Second
	defaultLogLevel       = "info"
	defaultShutdownGrace  = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse builds the configuration from the environment, loading an
// optional .env file first (current directory, then the user config
// directory).
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "vaulttasks", ".env"))
	}
	_ = godotenv.Load(envFiles...) // optional

	cfg := &Config{
		VaultPath:      getEnvString("VAULTTASKS_VAULT", ""),
		TasksFolder:    getEnvString("VAULTTASKS_TASKS_FOLDER", defaultTasksFolder),
		ReportsFolder:  getEnvString("VAULTTASKS_REPORTS_FOLDER", defaultReportsFolder),
		StateFile:      getEnvString("VAULTTASKS_STATE_FILE", defaultStateFile),
		CheckInterval:  getEnvDuration("VAULTTASKS_CHECK_INTERVAL", defaultCheckInterval),
		CommandTimeout: getEnvDuration("VAULTTASKS_COMMAND_TIMEOUT", defaultCommandTimeout),
		LogLevel:       getEnvString("VAULTTASKS_LOG_LEVEL", defaultLogLevel),
		Addr:           getEnvString("VAULTTASKS_ADDR", ""),
		AuthToken:      getEnvString("VAULTTASKS_AUTH_TOKEN", ""),
		BarkURL:        getEnvString("VAULTTASKS_BARK_URL", ""),
		ShutdownGrace:  getEnvDuration("VAULTTASKS_SHUTDOWN_GRACE", defaultShutdownGrace),
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return cfg, nil
}

// Validate checks that the vault root exists and is a directory.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.VaultPath) == "" {
		return fmt.Errorf("vault path is not set (use --vault or VAULTTASKS_VAULT)")
	}
	info, err := os.Stat(c.VaultPath)
	if err != nil {
		return fmt.Errorf("vault path %s: %w", c.VaultPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path %s is not a directory", c.VaultPath)
	}
	return nil
}

// TasksPath returns the absolute task documents directory.
func (c *Config) TasksPath() string { return filepath.Join(c.VaultPath, c.TasksFolder) }

// ReportsPath returns the absolute reports directory.
func (c *Config) ReportsPath() string { return filepath.Join(c.VaultPath, c.ReportsFolder) }

// StatePath returns the absolute system state file path.
func (c *Config) StatePath() string { return filepath.Join(c.VaultPath, c.StateFile) }
