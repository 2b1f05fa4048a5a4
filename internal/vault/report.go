package vault

import (
	"fmt"
	"path/filepath"
	"strings"

	"vaulttasks/internal/core"
	"vaulttasks/internal/document"
)

// CreateReport writes a detailed execution report as its own document
// under the reports directory and returns the report name (without
// extension) for wiki-linking. The filename is deterministic: run
// timestamp plus the slugged task title.
func (r *Repository) CreateReport(task *core.Task, result core.ExecutionResult) (string, error) {
	name := fmt.Sprintf("%s-%s", result.StartedAt.Format("2006-01-02-150405"), core.Slugify(task.Title))
	path := filepath.Join(r.ReportsDir, name+".md")

	content := renderReport(task, result)
	if err := atomicWrite(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	r.log.Info().Str("task", task.ID).Str("report", path).Msg("created report")
	return name, nil
}

func renderReport(task *core.Task, result core.ExecutionResult) string {
	statusText := "✅ Success"
	if !result.Succeeded() {
		statusText = "❌ Failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Execution Report\n\n", task.Title)
	fmt.Fprintf(&b, "**Executed:** %s\n", result.StartedAt.Format(document.TimeLayout))
	fmt.Fprintf(&b, "**Duration:** %.1f seconds\n", result.Duration.Seconds())
	fmt.Fprintf(&b, "**Command:** `%s`\n", core.PrepareCommand(task.Command, task.Params))
	fmt.Fprintf(&b, "**Exit Code:** %d\n", result.ExitCode)
	fmt.Fprintf(&b, "**Status:** %s\n", statusText)

	if len(task.Params) > 0 {
		b.WriteString("\n## Parameters\n\n")
		b.WriteString("| Key | Value |\n")
		b.WriteString("|-----|-------|\n")
		for _, p := range task.Params {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Key, p.Value)
		}
	}

	b.WriteString("\n## Output\n\n```\n")
	if out := strings.TrimRight(result.Stdout, "\n"); out != "" {
		b.WriteString(out)
	} else {
		b.WriteString("(no output)")
	}
	b.WriteString("\n```\n")

	if errOut := strings.TrimRight(result.Stderr, "\n"); strings.TrimSpace(errOut) != "" {
		b.WriteString("\n## Errors\n\n```\n")
		b.WriteString(errOut)
		b.WriteString("\n```\n")
	}

	b.WriteString("\n## Links\n")
	if task.Source.Path != "" {
		source := strings.TrimSuffix(filepath.Base(task.Source.Path), filepath.Ext(task.Source.Path))
		fmt.Fprintf(&b, "- Back to [[%s]]\n", source)
	}

	b.WriteString("\n---\n*Generated by vaulttasks*\n")
	return b.String()
}
