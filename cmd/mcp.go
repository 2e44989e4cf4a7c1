package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/mcpserver"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/toolexec"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server exposing local tools",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This exposes voco's sandboxed local tools to MCP clients. Configure in
an MCP-aware editor with:

  {
    "mcpServers": {
      "voco-local": { "command": "voco", "args": ["mcp"] }
    }
  }

Available tools: voco_read_file, voco_list_directory, voco_search_project,
voco_glob_find, voco_scan_security`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcpserver.NewServer(toolexec.New(logger))
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
