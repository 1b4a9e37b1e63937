//go:build basic

// Package integration contains integration tests for strata.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStrataRunUsesCache runs the chain twice and expects the second run to be served from SQLite.
func TestStrataRunUsesCache(t *testing.T) {
	dir := setupWorkspace(t)
	env := []string{"STRATA_RUN_BACKEND=sqlite"}

	var summaries []schema.RunSummary
	for range 2 {
		out, err := runStrata(t, dir, env, "run", "--output", "json")
		require.NoError(t, err)
		var summary schema.RunSummary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		summaries = append(summaries, summary)
	}

	require.Len(t, summaries[0].Loggers, 1)
	assert.False(t, summaries[0].Loggers[0].Cached)
	assert.True(t, summaries[1].Loggers[0].Cached)
	assert.NotEqual(t, summaries[0].RunID, summaries[1].RunID)

	l2, err := os.ReadFile(filepath.Join(dir, "levels", "L2", "CR1000.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(l2), "2024-01-01 00:30:00,12.75,1,56,0")

	out, err := runStrata(t, dir, env, "runs", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")

	_, err = runStrata(t, dir, env, "runs", "export", "--output-file", filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "history.runs.parquet"))
	assert.FileExists(t, filepath.Join(dir, "history.variable_summaries.parquet"))

	_, err = runStrata(t, dir, nil, "cache", "clear")
	require.NoError(t, err)
}

// TestStrataRulesCommands checks validation and listing against the fixture rules.
func TestStrataRulesCommands(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := runStrata(t, dir, nil, "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Rules OK")

	out, err = runStrata(t, dir, nil, "rules", "list", "--output", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "range_check")
	assert.Contains(t, out, "interpolate")

	out, err = runStrata(t, dir, nil, "funcs", "--output", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "mask_by_comparison_ind")

	_, err = runStrata(t, dir, nil, "rules", "validate", "--levels", "L1:gapfill,L1:quality")
	assert.Error(t, err, "duplicate level names are rejected")
}
