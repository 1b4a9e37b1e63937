package schema

import "time"

// CacheStatus represents the status of the level cache store.
type CacheStatus struct {
	Backend         string         `json:"backend"`
	Connected       bool           `json:"connected"`
	TotalEntries    int            `json:"total_entries"`
	LoggerEntries   map[string]int `json:"logger_entries,omitempty"`
	LastEntryTime   time.Time      `json:"last_entry_time"`
	OldestEntryTime time.Time      `json:"oldest_entry_time"`
	TableSizeBytes  int64          `json:"table_size_bytes"`
}

// RunStatus represents the status of the run tracking store.
type RunStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	TotalRuns       int              `json:"total_runs"`
	LastRunID       string           `json:"last_run_id"`
	LastRunTime     time.Time        `json:"last_run_time"`
	OldestRunTime   time.Time        `json:"oldest_run_time"`
	TotalLoggersRun int              `json:"total_loggers_run"`
	TableSizes      map[string]int64 `json:"table_sizes"`
}
