// Package commands implements the CLI commands for vaulttasks.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vaulttasks/internal/config"
	"vaulttasks/internal/core"
	"vaulttasks/internal/logging"
	"vaulttasks/internal/notify"
	"vaulttasks/internal/vault"
)

// CLI wires the configuration and engine into the cobra command tree.
type CLI struct {
	cfg     *config.Config
	log     zerolog.Logger
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given configuration.
func New(cfg *config.Config) *CLI {
	rootCmd := &cobra.Command{
		Use:           "vaulttasks",
		Short:         "Run scheduled tasks defined in markdown documents",
		Long: "vaulttasks reads task definitions from a folder of markdown documents,\n" +
			"runs the ones whose cron schedule is due, and writes results back into\n" +
			"the same documents. The documents are the only database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("vault", "", "Path to the vault root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	c := &CLI{
		cfg:     cfg,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if v, _ := cmd.Flags().GetString("vault"); v != "" {
			c.cfg.VaultPath = v
		}
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			c.cfg.LogLevel = l
		}
		c.log = logging.New(c.cfg.LogLevel)
	}

	rootCmd.AddCommand(c.newInitCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newDaemonCmd())
	rootCmd.AddCommand(c.newMCPCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// newEngine validates the configuration and assembles the task engine.
func (c *CLI) newEngine() (*core.Engine, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	repo := vault.NewRepository(c.cfg.TasksPath(), c.cfg.ReportsPath(), c.log)
	state := vault.NewStateStore(c.cfg.StatePath(), c.log)
	gateway := core.NewShellGateway(c.cfg.CommandTimeout, c.cfg.VaultPath, c.log)

	var notifier notify.Notifier = notify.NoOpNotifier{}
	if c.cfg.BarkURL != "" {
		bark, err := notify.NewBarkNotifier(c.cfg.BarkURL)
		if err != nil {
			return nil, fmt.Errorf("bark notifier: %w", err)
		}
		notifier = bark
	}

	return core.NewEngine(repo, state, gateway, notifier, c.log), nil
}
