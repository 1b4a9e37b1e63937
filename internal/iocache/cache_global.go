package iocache

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/rotisserie/eris"
)

// levelTable is the name of the table for cached logger results.
const levelTable = "level_cache"

// Global Manager instance for main logic.
var (
	Manager   = &CacheStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global manager with the level cache and the run store.
// An empty backend leaves the matching store unset.
func InitStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, runBackend schema.DatabaseBackend, runConnStr string) error {
	var initErr error

	initOnce.Do(func() {
		var levelStore contract.CacheStore
		if cacheBackend != "" {
			store, err := NewCacheStore(levelTable, cacheBackend, cacheConnStr)
			if err != nil {
				initErr = eris.Wrap(err, "failed to initialize level caching")
				return
			}
			levelStore = store
		}

		var runStore contract.RunStore
		if runBackend != "" {
			store, err := NewRunStore(runBackend, runConnStr)
			if err != nil {
				if levelStore != nil {
					_ = levelStore.Close()
				}
				initErr = eris.Wrap(err, "failed to initialize run store")
				return
			}
			runStore = store
		}

		Manager.Lock()
		defer Manager.Unlock()
		Manager.level = levelStore
		Manager.runs = runStore
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.level != nil {
			_ = Manager.level.Close()
		}
		if Manager.runs != nil {
			_ = Manager.runs.Close()
		}
	})
}

// ClearCache clears the level cache for the specified backend.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it drops the table.
func ClearCache(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	return clearTables(backend, dbFilePath, connStr, levelTable)
}

// ClearRuns clears the run history for the specified backend.
func ClearRuns(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	// Summaries first, so no backend sees orphans mid-clear.
	return clearTables(backend, dbFilePath, connStr, summariesTable, runsTable, "schema_migrations")
}

func clearTables(backend schema.DatabaseBackend, dbFilePath, connStr string, tables ...string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return eris.New("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "failed to remove SQLite database file %s", dbFilePath)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return dropSQLTables(backend, connStr, tables...)

	case schema.NoneBackend:
		return nil

	default:
		return eris.Errorf("unsupported backend for clearing: %s", backend)
	}
}

// dropSQLTables connects to the SQL database and drops the tables if they exist.
func dropSQLTables(backend schema.DatabaseBackend, connStr string, tables ...string) error {
	db, err := openDB(backend, connStr, "")
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	for _, table := range tables {
		if err := validateTableName(table); err != nil {
			return err
		}
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(table, backend))
		if _, err := db.Exec(query); err != nil {
			return eris.Wrapf(err, "failed to drop table %s", table)
		}
	}
	return nil
}
