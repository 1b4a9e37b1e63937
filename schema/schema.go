// Package schema has models, errors and constants shared by all parts of strata.
package schema

import "math"

// VariableSummary describes what one level transition did to one variable.
type VariableSummary struct {
	Variable string `json:"variable"`
	Points   int    `json:"points"`
	Missing  int    `json:"missing"`
	Flagged  int    `json:"flagged"`
	Error    string `json:"error,omitempty"`

	// RuleHits counts timestamps touched by each rule, in flagnum order.
	RuleHits []int `json:"rule_hits,omitempty"`
}

// Status derives the display status of a summary.
func (v VariableSummary) Status() VariableStatus {
	switch {
	case v.Error != "":
		return ErrorStatus
	case v.Missing > 0:
		return GapsStatus
	case v.Flagged > 0:
		return FlaggedStatus
	default:
		return CleanStatus
	}
}

// LevelResult is the outcome of producing one level for one logger.
type LevelResult struct {
	Level     string            `json:"level"`
	Stage     StageKind         `json:"stage"`
	Table     *Table            `json:"table,omitempty"`
	Variables []VariableSummary `json:"variables"`

	// Errors holds per-variable failures. They do not stop other variables.
	Errors []error `json:"-"`
}

// LoggerResult is the outcome of running a chain for one logger.
type LoggerResult struct {
	Logger string        `json:"logger"`
	Levels []LevelResult `json:"levels"`
	Cached bool          `json:"cached,omitempty"`
	Error  string        `json:"error,omitempty"`

	// Err is set when the chain could not run at all for this logger.
	Err error `json:"-"`
}

// Level returns the produced table for a level name.
func (r *LoggerResult) Level(name string) (*Table, bool) {
	for _, l := range r.Levels {
		if l.Level == name {
			return l.Table, l.Table != nil
		}
	}
	return nil, false
}

// ErrorCount returns the number of per-variable errors across all levels.
func (r *LoggerResult) ErrorCount() int {
	n := 0
	for _, l := range r.Levels {
		n += len(l.Errors)
	}
	return n
}

// RunResult collects every logger processed by one run.
type RunResult struct {
	RunID   string         `json:"run_id,omitempty"`
	Loggers []LoggerResult `json:"loggers"`
}

// SummarizeVariable builds a VariableSummary from a produced series and its flags.
func SummarizeVariable(name string, values []float64, flags []int64, hits []int) VariableSummary {
	s := VariableSummary{Variable: name, Points: len(values), RuleHits: hits}
	for i, v := range values {
		if math.IsNaN(v) {
			s.Missing++
		}
		if i < len(flags) && flags[i] != 0 {
			s.Flagged++
		}
	}
	return s
}
