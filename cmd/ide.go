package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/ideconfig"
)

var ideCmd = &cobra.Command{
	Use:   "ide",
	Short: "Register voco's MCP endpoint with installed editors",
	Long: `Write or update the voco-local MCP server entry in the config of
each detected editor (Cursor, Windsurf). Editors that are not installed
are skipped; existing entries for other servers are preserved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ideSyncRun()
	},
}

var ideSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write the MCP entry into detected editor configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ideSyncRun()
	},
}

func init() {
	ideCmd.AddCommand(ideSyncCmd)
	rootCmd.AddCommand(ideCmd)
}

func ideSyncRun() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	endpoint := viper.GetString("mcp.endpoint")
	if dryRun {
		ui.DryRunMsg("Would register %s endpoint %s", ideconfig.ServerName, endpoint)
		return nil
	}

	results, err := ideconfig.Sync(home, endpoint)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Skipped {
			ui.VerboseLog("%s not installed, skipped", r.IDE)
			continue
		}
		ui.Success("%s: %s", r.IDE, r.Path)
	}
	return nil
}
