package schema

import "time"

// RunRecord represents a row from the strata_runs table.
type RunRecord struct {
	RunID         string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalLoggers  int32
	RulesDigest   string
	ConfigParams  *string
}

// VariableSummaryRecord represents a row from the strata_variable_summaries table.
type VariableSummaryRecord struct {
	RunID         string
	Logger        string
	Level         string
	Varname       string
	RecordTime    time.Time
	TotalPoints   int32
	MissingPoints int32
	FlaggedPoints int32
	Status        string
	ErrorMessage  *string
}
