package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaulttasks/internal/core"
	"vaulttasks/internal/document"
)

func statusGlyph(status core.TaskStatus) string {
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

func (c *CLI) newListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show all tasks and their current status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := c.newEngine()
			if err != nil {
				return err
			}
			tasks, err := engine.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}

			fmt.Fprintf(out, "Found %d task(s):\n\n", len(tasks))
			for _, t := range tasks {
				fmt.Fprintf(out, "  %s %s\n", statusGlyph(t.Status), t.Title)
				if !verbose {
					continue
				}
				fmt.Fprintf(out, "      Command:  %s\n", t.Command)
				fmt.Fprintf(out, "      Schedule: %s\n", t.Schedule)
				fmt.Fprintf(out, "      File:     %s\n", t.Source.Path)
				if t.LastRun != nil {
					fmt.Fprintf(out, "      Last Run: %s\n", document.FormatTime(t.LastRun))
				}
				if t.NextRun != nil {
					fmt.Fprintf(out, "      Next Run: %s\n", document.FormatTime(t.NextRun))
				}
				if t.TotalRuns > 0 {
					fmt.Fprintf(out, "      Runs:     %d (%d ok, %d failed)\n",
						t.TotalRuns, t.SuccessfulRuns, t.FailedRuns)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show extra detail")
	return cmd
}
