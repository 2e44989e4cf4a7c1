package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/backend"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/output"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Manage the local engine processes",
	Long: `Start, stop, or inspect the local backend: the voice engine and,
when enabled, the LLM proxy. Processes already answering their health
endpoint are left alone.`,
}

var backendStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine (and proxy, if enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return backendStartRun()
	},
}

var backendStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop supervised backend processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return backendStopRun()
	},
}

var backendStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend process status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return backendStatusRun()
	},
}

func init() {
	backendCmd.AddCommand(backendStartCmd)
	backendCmd.AddCommand(backendStopCmd)
	backendCmd.AddCommand(backendStatusCmd)
	rootCmd.AddCommand(backendCmd)
}

func newSupervisor() *backend.Supervisor {
	procs := []backend.Process{
		{
			Name:      "engine",
			Command:   "uv",
			Args:      []string{"run", "uvicorn", "main:app", "--port", "8001"},
			Dir:       viper.GetString("engine.dir"),
			HealthURL: viper.GetString("engine.health_url"),
			Required:  true,
		},
	}
	if viper.GetBool("proxy.enabled") {
		procs = append(procs, backend.Process{
			Name:      "proxy",
			Command:   "litellm",
			Args:      []string{"--port", "4000"},
			HealthURL: viper.GetString("proxy.health_url"),
		})
	}
	return backend.NewSupervisor(logger, viper.GetString("state_dir"), procs)
}

func backendStartRun() error {
	if viper.GetString("engine.dir") == "" {
		return fmt.Errorf("engine.dir is not configured (set it in config or VOCO_ENGINE_DIR)")
	}
	if dryRun {
		ui.DryRunMsg("Would start engine in %s", viper.GetString("engine.dir"))
		return nil
	}

	sup := newSupervisor()
	if err := sup.Start(context.Background()); err != nil {
		return err
	}
	ui.Success("Backend up")
	return backendStatusRun()
}

func backendStopRun() error {
	if dryRun {
		ui.DryRunMsg("Would stop backend processes")
		return nil
	}
	if err := newSupervisor().Stop(); err != nil {
		return err
	}
	ui.Success("Backend stopped")
	return nil
}

func backendStatusRun() error {
	statuses := newSupervisor().Report(context.Background())

	table := ui.Table([]string{"Process", "PID", "Running", "Healthy"})
	for _, s := range statuses {
		pid := "-"
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		table.Append([]string{
			s.Name,
			pid,
			boolCell(s.Running),
			boolCell(s.Healthy),
		})
	}
	table.Render()
	return nil
}

func boolCell(v bool) string {
	if v {
		return output.Green("yes")
	}
	return output.Red("no")
}
