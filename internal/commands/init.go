package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleTask = `# Example Task

- Command: ` + "`echo \"hello from vaulttasks\"`" + `
- Schedule: ` + "`0 9 * * *`" + `

Edit the command and schedule above, then let the daemon pick it up.
Results are written back into this file below.
`

func (c *CLI) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [vault-path]",
		Short: "Create the Tasks and Reports folders inside a vault",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.cfg.VaultPath = args[0]
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			if err := os.MkdirAll(c.cfg.TasksPath(), 0o755); err != nil {
				return fmt.Errorf("create tasks folder: %w", err)
			}
			if err := os.MkdirAll(c.cfg.ReportsPath(), 0o755); err != nil {
				return fmt.Errorf("create reports folder: %w", err)
			}

			// Drop a starter document unless the folder already has tasks.
			samplePath := filepath.Join(c.cfg.TasksPath(), "Example Task.md")
			if empty, err := dirIsEmpty(c.cfg.TasksPath()); err == nil && empty {
				if err := os.WriteFile(samplePath, []byte(sampleTask), 0o644); err != nil {
					return fmt.Errorf("write sample task: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Initialised vault: %s\n", c.cfg.VaultPath)
			fmt.Fprintf(cmd.OutOrStdout(), "   Tasks:   %s\n", c.cfg.TasksPath())
			fmt.Fprintf(cmd.OutOrStdout(), "   Reports: %s\n", c.cfg.ReportsPath())
			return nil
		},
	}
}

func dirIsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
