// Package contract provides interfaces and shared utilities for strata's internal architecture.
package contract

import (
	"time"

	"github.com/huangsam/strata/schema"
)

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetLevelStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cached level results.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key, logger string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking pipeline runs and their per-variable outcomes.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(startTime time.Time, rulesDigest string, configParams map[string]any) (string, error)

	// EndRun updates the run with completion data
	EndRun(runID string, endTime time.Time, totalLoggers int) error

	// RecordVariableSummary stores the outcome of one variable at one level
	RecordVariableSummary(runID string, record schema.VariableSummaryRecord) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every recorded run, oldest first
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllVariableSummaries returns every recorded variable summary
	GetAllVariableSummaries() ([]schema.VariableSummaryRecord, error)

	// Close closes the underlying connection
	Close() error
}
