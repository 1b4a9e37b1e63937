package cmd

import (
	"github.com/huangsam/strata/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the strata MCP server",
	Long:  `Launch an MCP server over stdio that lets AI agents run the level chain, validate rules and list rules or functions.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Headers are suppressed by the handlers since stdio carries the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
