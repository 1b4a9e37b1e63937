package schema_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableSummaryStatus(t *testing.T) {
	tests := []struct {
		name     string
		summary  schema.VariableSummary
		expected schema.VariableStatus
	}{
		{"clean", schema.VariableSummary{Points: 5}, schema.CleanStatus},
		{"flagged", schema.VariableSummary{Points: 5, Flagged: 1}, schema.FlaggedStatus},
		{"gaps win over flags", schema.VariableSummary{Points: 5, Flagged: 1, Missing: 1}, schema.GapsStatus},
		{"error wins", schema.VariableSummary{Missing: 2, Error: "boom"}, schema.ErrorStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.summary.Status())
		})
	}
}

func TestSummarizeVariable(t *testing.T) {
	s := schema.SummarizeVariable("x", []float64{1, math.NaN(), 3}, []int64{0, 1, 2}, []int{1, 1})
	assert.Equal(t, 3, s.Points)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 2, s.Flagged)
	assert.Equal(t, []int{1, 1}, s.RuleHits)
}

func TestFlattenRun(t *testing.T) {
	result := &schema.RunResult{Loggers: []schema.LoggerResult{
		{Logger: "A", Levels: []schema.LevelResult{
			{Level: "L1", Stage: schema.QualityStage, Variables: []schema.VariableSummary{{Variable: "x", Points: 2}, {Variable: "y", Points: 2, Flagged: 1}}},
		}},
		{Logger: "B", Levels: []schema.LevelResult{
			{Level: "L1", Stage: schema.QualityStage, Variables: []schema.VariableSummary{{Variable: "x", Error: "missing"}}},
		}},
	}}

	rows := schema.FlattenRun(result)
	assert.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Logger)
	assert.Equal(t, schema.CleanStatus, rows[0].Status)
	assert.Equal(t, schema.FlaggedStatus, rows[1].Status)
	assert.Equal(t, "B", rows[2].Logger)
	assert.Equal(t, schema.ErrorStatus, rows[2].Status)
}

func TestErrorsSupportIsAndAs(t *testing.T) {
	missing := &schema.MissingVariableError{Logger: "A", Level: "L1", Varname: "x"}
	wrapped := schema.WithContext(fmt.Errorf("stage: %w", missing), "A", "L1", "x")

	assert.True(t, errors.Is(wrapped, schema.ErrMissingVariable))
	var mv *schema.MissingVariableError
	assert.True(t, errors.As(wrapped, &mv))
	assert.Equal(t, "x", mv.Varname)
	assert.Contains(t, wrapped.Error(), "logger=A level=L1 varname=x")

	ruleErr := &schema.RuleDefinitionError{
		Family: "quality",
		Key:    schema.RuleKey{Logger: "A", Flagnum: 1, Varname: "x"},
		Reason: "function not registered",
		Err:    &schema.UnknownFunctionError{Kind: schema.QualityFunc, Name: "nope"},
	}
	assert.True(t, errors.Is(ruleErr, schema.ErrRuleDefinition))
	assert.True(t, errors.Is(ruleErr, schema.ErrUnknownFunction))
	assert.Contains(t, ruleErr.Error(), "flagnum=1")

	assert.NoError(t, schema.WithContext(nil, "A", "", ""))
	assert.True(t, errors.Is(&schema.LevelCycleError{Logger: "A", Levels: []string{"L1", "L2", "L1"}}, schema.ErrLevelCycle))
}

func TestSummarizeRunDropsTables(t *testing.T) {
	tbl, err := schema.NewTable("CR1000", "L1", nil)
	require.NoError(t, err)
	result := &schema.RunResult{RunID: "r", Loggers: []schema.LoggerResult{
		{Logger: "CR1000", Cached: true, Levels: []schema.LevelResult{{Level: "L1", Stage: schema.QualityStage, Table: tbl, Variables: []schema.VariableSummary{{Variable: "x", Points: 3}}}}},
		{Logger: "CR3000", Error: "boom"},
	}}

	got := schema.SummarizeRun(result)
	assert.Equal(t, "r", got.RunID)
	require.Len(t, got.Loggers, 2)
	assert.True(t, got.Loggers[0].Cached)
	assert.Equal(t, []schema.VariableSummary{{Variable: "x", Points: 3}}, got.Loggers[0].Levels[0].Variables)
	assert.Equal(t, "boom", got.Loggers[1].Error)
	assert.Empty(t, got.Loggers[1].Levels)
}
