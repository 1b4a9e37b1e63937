// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/strata/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the strata MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Strata Level Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: run_pipeline ---
	s.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run the level chain over raw logger tables and write every produced level."),
		mcp.WithString("data_dir", mcp.Description("Directory of raw tables, one CSV or Parquet file per logger.")),
		mcp.WithString("out_dir", mcp.Description("Directory that receives <level>/<logger> files.")),
		mcp.WithString("levels", mcp.Description("Level chain such as 'L1:quality,L2:gapfill'.")),
		mcp.WithString("loggers", mcp.Description("Comma separated loggers to process (defaults to all).")),
	), h.handleRunPipeline)

	// --- 2. Tool: validate_rules ---
	s.AddTool(mcp.NewTool("validate_rules",
		mcp.WithDescription("Load the quality and gap-fill rule tables and check level dependencies for every logger."),
		mcp.WithString("quality_rules", mcp.Description("Path to the quality rules CSV.")),
		mcp.WithString("gapfill_rules", mcp.Description("Path to the gap-fill rules CSV.")),
		mcp.WithString("levels", mcp.Description("Level chain to plan against.")),
	), h.handleValidateRules)

	// --- 3. Tool: list_rules ---
	s.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List loaded rules of both families."),
		mcp.WithString("loggers", mcp.Description("Comma separated loggers to list (defaults to all).")),
		mcp.WithString("family", mcp.Description("Restrict to one rule family."), mcp.Enum("quality", "gapfill")),
	), h.handleListRules)

	// --- 4. Tool: list_functions ---
	s.AddTool(mcp.NewTool("list_functions",
		mcp.WithDescription("List the built-in quality and fill functions rules can name."),
	), h.handleListFunctions)

	return s
}

// StartMCPServer starts the strata MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
