package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newRunCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Execute a task immediately, by ID or title",
		Long: "Execute a task right away, outside its schedule, and write the\n" +
			"result back into the task's document. The task is matched by exact\n" +
			"ID or by a unique case-insensitive title fragment.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && filePath == "" {
				return fmt.Errorf("provide a task name or --file path")
			}

			engine, err := c.newEngine()
			if err != nil {
				return err
			}

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			if filePath != "" {
				ref, err = c.taskRefForFile(cmd, filePath)
				if err != nil {
					return err
				}
			}

			task, result, err := engine.RunTaskNow(cmd.Context(), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "▶ Running: %s\n", task.Title)
			fmt.Fprintf(out, "  Command: %s\n\n", task.Command)
			if result.Succeeded() {
				fmt.Fprintf(out, "✅ Success (%.1fs)\n", result.Duration.Seconds())
			} else {
				fmt.Fprintf(out, "❌ Failed (exit %d, %.1fs)\n", result.ExitCode, result.Duration.Seconds())
			}
			if s := strings.TrimSpace(result.Stdout); s != "" {
				fmt.Fprintf(out, "\n--- Output ---\n%s\n", s)
			}
			if s := strings.TrimSpace(result.Stderr); s != "" {
				fmt.Fprintf(out, "\n--- Errors ---\n%s\n", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Run the task defined in this document")
	return cmd
}

// taskRefForFile resolves a document path to the ID of the task it
// defines. Files holding several tasks need the task named explicitly.
func (c *CLI) taskRefForFile(cmd *cobra.Command, filePath string) (string, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	engine, err := c.newEngine()
	if err != nil {
		return "", err
	}
	tasks, err := engine.Snapshot(cmd.Context())
	if err != nil {
		return "", err
	}
	var ids []string
	for _, t := range tasks {
		if srcAbs, err := filepath.Abs(t.Source.Path); err == nil && srcAbs == abs {
			ids = append(ids, t.ID)
		}
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no valid task in %q: a task needs '- Command:' and '- Schedule:' lines and must live under %s",
			filepath.Base(filePath), c.cfg.TasksPath())
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("file defines several tasks, run one by ID: %s", strings.Join(ids, ", "))
	}
}
