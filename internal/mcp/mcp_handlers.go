package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/strata/core"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if d := request.GetString("data_dir", ""); d != "" {
		cfg.DataDir = d
	}
	if o := request.GetString("out_dir", ""); o != "" {
		cfg.OutDir = o
	}
	contract.RevalidateLoggers(cfg, request.GetString("loggers", ""))
	if err := contract.RevalidateLevels(cfg, request.GetString("levels", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid levels: %v", err)), nil
	}
	if cfg.DataDir == "" {
		return mcp.NewToolResultError("data_dir is required"), nil
	}

	result, err := core.GetRunResults(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	return jsonResult(schema.SummarizeRun(result))
}

func (h *toolHandler) handleValidateRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if q := request.GetString("quality_rules", ""); q != "" {
		cfg.QualityRules = q
	}
	if g := request.GetString("gapfill_rules", ""); g != "" {
		cfg.GapFillRules = g
	}
	if err := contract.RevalidateLevels(cfg, request.GetString("levels", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid levels: %v", err)), nil
	}

	// Planning problems are part of the report, so only load failures are errors here.
	report, err := core.ValidateRules(cfg)
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("rules failed to load: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *toolHandler) handleListRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	contract.RevalidateLoggers(cfg, request.GetString("loggers", ""))

	rows, err := core.GetRuleRows(cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rules failed to load: %v", err)), nil
	}
	if family := request.GetString("family", ""); family != "" {
		filtered := make([]schema.RuleRow, 0, len(rows))
		for _, r := range rows {
			if r.Family == family {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	return jsonResult(rows)
}

func (h *toolHandler) handleListFunctions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(core.GetFunctions())
}
