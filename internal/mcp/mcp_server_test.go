package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/strata/internal/contract"
	mcp_internal "github.com/huangsam/strata/internal/mcp"
	"github.com/huangsam/strata/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawCSV = `timestamp,AirTC_1_2_1
2024-01-01 00:00:00,12.0
2024-01-01 00:30:00,999
2024-01-01 01:00:00,13.5
2024-01-01 01:30:00,NA
2024-01-01 02:00:00,14.0
`

const qualityCSV = `logger,flagnum,varname,q_func,q_func_arg1,q_func_arg2,q_func_arg3,q_func_arg4,q_func_arg5,startflag,endflag,description
CR1000,1,AirTC_1_2_1,range_check,min=-40,max=60,,,,,,plausible range
`

const gapfillCSV = `logger,flagnum,varname,src_level,src_varname,gf_func,startflag,endflag,startfit,endfit,gf_kwargs,description
CR1000,1,AirTC_1_2_1,,,interpolate,,,,,,short gaps
`

func baseConfig(t *testing.T) *contract.Config {
	t.Helper()
	dir := t.TempDir()
	for path, content := range map[string]string{
		filepath.Join(dir, "data", "CR1000.csv"):    rawCSV,
		filepath.Join(dir, "rules", "quality.csv"): qualityCSV,
		filepath.Join(dir, "rules", "gapfill.csv"): gapfillCSV,
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	levels, err := contract.NormalizeChain([]schema.LevelSpec{{Name: "L1", Stage: schema.QualityStage}, {Name: "L2", Stage: schema.GapFillStage}})
	require.NoError(t, err)
	return &contract.Config{
		DataDir:      filepath.Join(dir, "data"),
		OutDir:       filepath.Join(dir, "out"),
		QualityRules: filepath.Join(dir, "rules", "quality.csv"),
		GapFillRules: filepath.Join(dir, "rules", "gapfill.csv"),
		Levels:       levels,
		Workers:      2,
		Format:       schema.CSVFormat,
	}
}

func call(t *testing.T, cfg *contract.Config, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(cfg, nil)
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	cfg := baseConfig(t)

	t.Run("run_pipeline invalid levels", func(t *testing.T) {
		res := call(t, cfg, "run_pipeline", map[string]any{"levels": "L1:smooth"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid levels")
	})

	t.Run("run_pipeline missing data dir", func(t *testing.T) {
		res := call(t, cfg, "run_pipeline", map[string]any{"data_dir": filepath.Join(t.TempDir(), "nope")})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "run failed")
	})

	t.Run("list_rules missing file", func(t *testing.T) {
		broken := cfg.Clone()
		broken.QualityRules = filepath.Join(t.TempDir(), "missing.csv")
		res := call(t, broken, "list_rules", nil)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "rules failed to load")
	})
}

func TestMCPRunPipeline(t *testing.T) {
	cfg := baseConfig(t)
	res := call(t, cfg, "run_pipeline", map[string]any{"loggers": "CR1000"})
	require.False(t, res.IsError, text(res))

	var summary schema.RunSummary
	require.NoError(t, json.Unmarshal([]byte(text(res)), &summary))
	require.Len(t, summary.Loggers, 1)
	require.Len(t, summary.Loggers[0].Levels, 2)
	assert.Equal(t, 2, summary.Loggers[0].Levels[1].Variables[0].Flagged)
	assert.NotContains(t, text(res), `"table"`)
	assert.FileExists(t, filepath.Join(cfg.OutDir, "L2", "CR1000.csv"))
}

func TestMCPValidateRules(t *testing.T) {
	cfg := baseConfig(t)

	res := call(t, cfg, "validate_rules", nil)
	require.False(t, res.IsError, text(res))
	var report schema.RulesReport
	require.NoError(t, json.Unmarshal([]byte(text(res)), &report))
	assert.Equal(t, 1, report.Quality)
	assert.Empty(t, report.Problems)

	// The chain can be swapped per call.
	res = call(t, cfg, "validate_rules", map[string]any{"levels": "L1:gapfill,L2:quality"})
	require.False(t, res.IsError, text(res))
	require.NoError(t, json.Unmarshal([]byte(text(res)), &report))
	assert.Equal(t, "L1:gapfill,L2:quality", report.Chain)
}

func TestMCPListRulesAndFunctions(t *testing.T) {
	cfg := baseConfig(t)

	res := call(t, cfg, "list_rules", map[string]any{"family": "gapfill"})
	require.False(t, res.IsError, text(res))
	var rows []schema.RuleRow
	require.NoError(t, json.Unmarshal([]byte(text(res)), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "interpolate", rows[0].Func)

	res = call(t, cfg, "list_functions", nil)
	require.False(t, res.IsError)
	var infos []schema.FunctionInfo
	require.NoError(t, json.Unmarshal([]byte(text(res)), &infos))
	assert.NotEmpty(t, infos)
}
