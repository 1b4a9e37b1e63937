package schema

// SummaryRow flattens one variable summary with its logger and level for printing.
type SummaryRow struct {
	Logger string         `json:"logger"`
	Level  string         `json:"level"`
	Stage  StageKind      `json:"stage"`
	Status VariableStatus `json:"status"`
	VariableSummary
}

// RuleRow flattens one rule of either family for listings.
type RuleRow struct {
	Family      string `json:"family"`
	Logger      string `json:"logger"`
	Flagnum     int    `json:"flagnum"`
	Varname     string `json:"varname"`
	Func        string `json:"func"`
	Window      string `json:"window"`
	FitWindow   string `json:"fit_window,omitempty"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// FlattenRun turns a run result into summary rows ordered by logger, level and column.
func FlattenRun(result *RunResult) []SummaryRow {
	var rows []SummaryRow
	for _, lr := range result.Loggers {
		for _, lvl := range lr.Levels {
			for _, v := range lvl.Variables {
				rows = append(rows, SummaryRow{
					Logger:          lr.Logger,
					Level:           lvl.Level,
					Stage:           lvl.Stage,
					Status:          v.Status(),
					VariableSummary: v,
				})
			}
		}
	}
	return rows
}

// QualityRuleRows converts quality rules into listing rows.
func QualityRuleRows(rules []QualityFlagRule) []RuleRow {
	rows := make([]RuleRow, len(rules))
	for i, r := range rules {
		rows[i] = RuleRow{
			Family:      "quality",
			Logger:      r.Logger,
			Flagnum:     r.Flagnum,
			Varname:     r.Varname,
			Func:        r.Func,
			Window:      r.Window.String(),
			Description: r.Description,
		}
	}
	return rows
}

// GapFillRuleRows converts gap-fill rules into listing rows.
func GapFillRuleRows(rules []GapFlagRule) []RuleRow {
	rows := make([]RuleRow, len(rules))
	for i, r := range rules {
		src := ""
		if r.SrcLevel != "" || r.SrcVarname != "" {
			src = r.SrcLevel + ":" + r.SrcVarname
		}
		rows[i] = RuleRow{
			Family:      "gapfill",
			Logger:      r.Logger,
			Flagnum:     r.Flagnum,
			Varname:     r.Varname,
			Func:        r.Func,
			Window:      r.Apply.String(),
			FitWindow:   r.Fit.String(),
			Source:      src,
			Description: r.Description,
		}
	}
	return rows
}

// RulesReport summarizes a rules validation.
type RulesReport struct {
	Quality  int      `json:"quality"`
	GapFill  int      `json:"gapfill"`
	Digest   string   `json:"digest"`
	Chain    string   `json:"chain"`
	Loggers  []string `json:"loggers"`
	Problems []string `json:"problems,omitempty"`
}

// LevelSummary is a LevelResult without its table.
type LevelSummary struct {
	Level     string            `json:"level"`
	Stage     StageKind         `json:"stage"`
	Variables []VariableSummary `json:"variables"`
}

// LoggerSummary is a LoggerResult without level tables.
type LoggerSummary struct {
	Logger string         `json:"logger"`
	Cached bool           `json:"cached"`
	Error  string         `json:"error,omitempty"`
	Levels []LevelSummary `json:"levels"`
}

// RunSummary is the printable form of a RunResult. Level tables are left
// out since they are written to the output directory.
type RunSummary struct {
	RunID   string          `json:"run_id,omitempty"`
	Loggers []LoggerSummary `json:"loggers"`
}

// SummarizeRun drops the level tables from a run result.
func SummarizeRun(result *RunResult) RunSummary {
	out := RunSummary{RunID: result.RunID, Loggers: make([]LoggerSummary, 0, len(result.Loggers))}
	for _, lr := range result.Loggers {
		ls := LoggerSummary{Logger: lr.Logger, Cached: lr.Cached, Error: lr.Error, Levels: make([]LevelSummary, 0, len(lr.Levels))}
		for _, lvl := range lr.Levels {
			ls.Levels = append(ls.Levels, LevelSummary{Level: lvl.Level, Stage: lvl.Stage, Variables: lvl.Variables})
		}
		out.Loggers = append(out.Loggers, ls)
	}
	return out
}
