// Package parquet provides data structures and functions for reading and
// writing strata levels and run history as Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/huangsam/strata/schema"
	"github.com/parquet-go/parquet-go"
)

// RawRow is one observation of a raw table in long format.
type RawRow struct {
	// Timestamp is the observation time (stored as TIMESTAMP with nanosecond precision)
	Timestamp time.Time `parquet:"timestamp,snappy"`

	// Variable is the column name of the observation
	Variable string `parquet:"variable,snappy,dict"`

	// Value is the observed value (nullable when missing)
	Value *float64 `parquet:"value,optional,snappy"`
}

// LevelRow is one value of a produced level in long format.
type LevelRow struct {
	Logger    string    `parquet:"logger,snappy,dict"`
	Level     string    `parquet:"level,snappy,dict"`
	Timestamp time.Time `parquet:"timestamp,snappy"`
	Variable  string    `parquet:"variable,snappy,dict"`

	// Value is nil where the level still has a gap
	Value *float64 `parquet:"value,optional,snappy"`

	// Flag holds the bit of every rule that touched the value
	Flag int64 `parquet:"flag,snappy"`
}

// Run represents a single pipeline run with metadata.
// This struct maps to the strata_runs database table.
type Run struct {
	// RunID is the UUID of this run
	RunID string `parquet:"run_id,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalLoggers is the number of loggers processed in this run
	TotalLoggers int32 `parquet:"total_loggers,snappy"`

	// RulesDigest identifies the rule set the run used
	RulesDigest string `parquet:"rules_digest,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// VariableSummary represents the outcome for one variable at one level of a run.
// This struct maps to the strata_variable_summaries database table.
type VariableSummary struct {
	RunID         string    `parquet:"run_id,snappy"`
	Logger        string    `parquet:"logger,snappy,dict"`
	Level         string    `parquet:"level,snappy,dict"`
	Varname       string    `parquet:"varname,snappy"`
	RecordTime    time.Time `parquet:"record_time,snappy"`
	TotalPoints   int32     `parquet:"total_points,snappy"`
	MissingPoints int32     `parquet:"missing_points,snappy"`
	FlaggedPoints int32     `parquet:"flagged_points,snappy"`
	Status        string    `parquet:"status,snappy,dict"`

	// ErrorMessage is set when the variable failed (nullable)
	ErrorMessage *string `parquet:"error_message,optional,snappy"`
}

// writeParquetFile creates outputPath and writes data to it.
func writeParquetFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := WriteRows(file, data); err != nil {
		return err
	}
	return file.Sync()
}

// WriteRows writes data to w as a single Parquet file.
// The schema is automatically derived from the struct tags of T.
func WriteRows[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeParquetFile(data, outputPath)
}

// WriteVariableSummariesParquet writes a slice of VariableSummary structs to a Parquet file.
func WriteVariableSummariesParquet(data []VariableSummary, outputPath string) error {
	return writeParquetFile(data, outputPath)
}

// ReadRawRows reads a long-format raw table from a Parquet file.
func ReadRawRows(path string) ([]RawRow, error) {
	rows, err := parquet.ReadFile[RawRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	return rows, nil
}

// ReadLevelRows reads a level written by WriteRows.
func ReadLevelRows(path string) ([]LevelRow, error) {
	rows, err := parquet.ReadFile[LevelRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	return rows, nil
}

// ConvertTable flattens a level table into long-format rows ordered by
// timestamp, then by column order.
func ConvertTable(table *schema.Table) []LevelRow {
	type column struct {
		name   string
		values []float64
		flags  []int64
	}
	cols := make([]column, 0, len(table.Columns))
	for _, name := range table.Columns {
		s, _ := table.Series(name)
		f, _ := table.Flags(name)
		cols = append(cols, column{name: name, values: s.Values, flags: f})
	}

	rows := make([]LevelRow, 0, table.Len()*len(cols))
	for i, ts := range table.Index {
		for _, c := range cols {
			row := LevelRow{Logger: table.Logger, Level: table.Level, Timestamp: ts.UTC(), Variable: c.name}
			if v := c.values[i]; !math.IsNaN(v) {
				row.Value = &v
			}
			if c.flags != nil {
				row.Flag = c.flags[i]
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalLoggers:  record.TotalLoggers,
			RulesDigest:   record.RulesDigest,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertVariableSummaryRecords converts schema.VariableSummaryRecord to VariableSummary for Parquet export.
func ConvertVariableSummaryRecords(records []schema.VariableSummaryRecord) []VariableSummary {
	result := make([]VariableSummary, len(records))
	for i, record := range records {
		result[i] = VariableSummary{
			RunID:         record.RunID,
			Logger:        record.Logger,
			Level:         record.Level,
			Varname:       record.Varname,
			RecordTime:    record.RecordTime,
			TotalPoints:   record.TotalPoints,
			MissingPoints: record.MissingPoints,
			FlaggedPoints: record.FlaggedPoints,
			Status:        record.Status,
			ErrorMessage:  record.ErrorMessage,
		}
	}
	return result
}
