package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/output"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/secscan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a project for exposed secrets",
	Long: `Scan a project's env files for credentials that look real and report
the dependency manifest. Defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		return scanRun(path)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func scanRun(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("project path: %w", err)
	}

	report, err := secscan.Scan(abs)
	if err != nil {
		return err
	}

	ui.Info("Scanned %s", abs)
	if deps := report.Dependencies; deps != nil && deps.Source != "" {
		ui.Info("Dependencies: %d runtime, %d dev (%s)",
			len(deps.Dependencies), len(deps.DevDependencies), deps.Source)
	}

	if len(report.EnvIssues) == 0 {
		ui.Success("No exposed secrets found")
		return nil
	}

	table := ui.Table([]string{"File", "Line", "Key", "Severity", "Issue"})
	for _, f := range report.EnvIssues {
		table.Append([]string{
			f.File,
			fmt.Sprintf("%d", f.Line),
			f.Key,
			output.SeverityColor(f.Severity),
			f.IssueType,
		})
	}
	table.Render()

	ui.Warning("%d potential secret(s) found", len(report.EnvIssues))
	return nil
}
