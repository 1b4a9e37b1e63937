package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/rotisserie/eris"
)

// sqliteTimeLayout keeps a fixed-width fraction so stored times sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Table names for run tracking.
const (
	runsTable      = "strata_runs"
	summariesTable = "strata_variable_summaries"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}
	db, err := openDB(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return nil, eris.Wrap(err, "run store")
	}
	if err := applySchema(db, backend); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to create run tables")
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, rulesDigest string, configParams map[string]any) (string, error) {
	if rs.db == nil {
		return "", nil
	}
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return "", eris.Wrap(err, "failed to marshal config params")
	}

	runID := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (run_id, start_time, rules_digest, config_params) VALUES (%s)`,
		quoteTableName(runsTable, rs.backend), strings.Join(placeholders(rs.backend, 4), ", "))
	if _, err := rs.db.Exec(query, runID, rs.formatTime(startTime), rulesDigest, string(configJSON)); err != nil {
		return "", eris.Wrap(err, "failed to insert run")
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID string, endTime time.Time, totalLoggers int) error {
	if rs.db == nil {
		return nil
	}
	table := quoteTableName(runsTable, rs.backend)
	ph := placeholders(rs.backend, 4)

	var startTime time.Time
	row := rs.db.QueryRow(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, table, ph[0]), runID)
	if err := rs.scanTime(row.Scan, &startTime); err != nil {
		return eris.Wrapf(err, "failed to get start_time for run %s", runID)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	query := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_loggers = %s WHERE run_id = %s`,
		table, ph[0], ph[1], ph[2], ph[3])
	if _, err := rs.db.Exec(query, rs.formatTime(endTime), durationMs, totalLoggers, runID); err != nil {
		return eris.Wrap(err, "failed to update run")
	}
	return nil
}

// RecordVariableSummary stores the outcome of one variable at one level.
func (rs *RunStoreImpl) RecordVariableSummary(runID string, record schema.VariableSummaryRecord) error {
	if rs.db == nil {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, logger, level, varname, record_time, total_points,
		                missing_points, flagged_points, status, error_message)
		VALUES (%s)
	`, quoteTableName(summariesTable, rs.backend), strings.Join(placeholders(rs.backend, 10), ", "))
	_, err := rs.db.Exec(query,
		runID, record.Logger, record.Level, record.Varname, rs.formatTime(record.RecordTime),
		record.TotalPoints, record.MissingPoints, record.FlaggedPoints, record.Status, record.ErrorMessage)
	if err != nil {
		return eris.Wrapf(err, "failed to insert summary for %s/%s/%s", record.Logger, record.Level, record.Varname)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	runs := quoteTableName(runsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, eris.Wrap(err, "failed to get total runs")
	}

	if status.TotalRuns > 0 {
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY start_time DESC LIMIT 1", runs))
		if err := rs.scanTime(func(dest ...any) error {
			return row.Scan(append([]any{&status.LastRunID}, dest...)...)
		}, &status.LastRunTime); err != nil {
			return status, eris.Wrap(err, "failed to get last run info")
		}

		row = rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY start_time ASC LIMIT 1", runs))
		if err := rs.scanTime(row.Scan, &status.OldestRunTime); err != nil {
			return status, eris.Wrap(err, "failed to get oldest run time")
		}

		row = rs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(total_loggers), 0) FROM %s", runs))
		if err := row.Scan(&status.TotalLoggersRun); err != nil {
			return status, eris.Wrap(err, "failed to get total loggers run")
		}
	}

	for _, table := range []string{runsTable, summariesTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))).Scan(&count); err != nil {
			return status, eris.Wrapf(err, "failed to get count for table %s", table)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all runs, oldest first.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, total_loggers, rules_digest, config_params
		FROM %s ORDER BY start_time, run_id`, quoteTableName(runsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query runs")
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		if rs.backend == schema.SQLiteBackend {
			var start string
			var end *string
			if err := rows.Scan(&record.RunID, &start, &end, &record.RunDurationMs, &record.TotalLoggers, &record.RulesDigest, &record.ConfigParams); err != nil {
				return nil, eris.Wrap(err, "failed to scan run")
			}
			if record.StartTime, err = time.Parse(sqliteTimeLayout, start); err != nil {
				return nil, eris.Wrap(err, "failed to parse start_time")
			}
			if end != nil {
				endTime, err := time.Parse(sqliteTimeLayout, *end)
				if err != nil {
					return nil, eris.Wrap(err, "failed to parse end_time")
				}
				record.EndTime = &endTime
			}
		} else if err := rows.Scan(&record.RunID, &record.StartTime, &record.EndTime, &record.RunDurationMs, &record.TotalLoggers, &record.RulesDigest, &record.ConfigParams); err != nil {
			return nil, eris.Wrap(err, "failed to scan run")
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating runs")
	}
	return results, nil
}

// GetAllVariableSummaries retrieves every recorded variable summary.
func (rs *RunStoreImpl) GetAllVariableSummaries() ([]schema.VariableSummaryRecord, error) {
	if rs.db == nil {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, logger, level, varname, record_time, total_points,
		missing_points, flagged_points, status, error_message
		FROM %s ORDER BY run_id, logger, level, varname`, quoteTableName(summariesTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query variable summaries")
	}
	defer func() { _ = rows.Close() }()

	var results []schema.VariableSummaryRecord
	for rows.Next() {
		var r schema.VariableSummaryRecord
		err := rs.scanTime(func(dest ...any) error {
			return rows.Scan(&r.RunID, &r.Logger, &r.Level, &r.Varname, dest[0],
				&r.TotalPoints, &r.MissingPoints, &r.FlaggedPoints, &r.Status, &r.ErrorMessage)
		}, &r.RecordTime)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan variable summary")
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating variable summaries")
	}
	return results, nil
}

// formatTime converts a time.Time to the appropriate format for the backend.
func (rs *RunStoreImpl) formatTime(t time.Time) any {
	if rs.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// scanTime scans a time column through scan. SQLite stores times as
// RFC 3339 text; the other backends scan natively.
func (rs *RunStoreImpl) scanTime(scan func(dest ...any) error, t *time.Time) error {
	if rs.backend != schema.SQLiteBackend {
		return scan(t)
	}
	var s string
	if err := scan(&s); err != nil {
		return err
	}
	parsed, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
