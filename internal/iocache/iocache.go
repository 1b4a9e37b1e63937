// Package iocache persists cached levels and run history in a SQL database.
package iocache

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/rotisserie/eris"
)

// CacheStoreManager holds the level cache and the run store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	level        contract.CacheStore
	runs         contract.RunStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetLevelStore returns the level CacheStore.
func (mgr *CacheStoreManager) GetLevelStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.level
}

// GetRunStore returns the RunStore.
func (mgr *CacheStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName rejects anything that is not a plain SQL identifier.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return eris.Errorf("invalid table name %q: must match %s", name, tableNamePattern)
	}
	return nil
}

// quoteTableName quotes a validated identifier for the backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	if backend == schema.MySQLBackend {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// driverFor maps a backend to its database/sql driver name.
func driverFor(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", eris.Errorf("unsupported backend: %s", backend)
	}
}

// openDB opens and pings a database. An empty SQLite connection string
// falls back to defaultPath.
func openDB(backend schema.DatabaseBackend, connStr, defaultPath string) (*sql.DB, error) {
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = defaultPath
		}
	case schema.MySQLBackend:
		// DATETIME columns are scanned into time.Time
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return nil, eris.Wrap(err, "invalid MySQL connection string; expected user:password@tcp(host:port)/dbname")
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		connStr = cfg.FormatDSN()
	}
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s database", backend)
	}
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(err, "failed to connect to %s database; check that the server is running and the connection string is valid", backend)
	}
	return db, nil
}

// placeholders returns n positional parameters for the backend.
func placeholders(backend schema.DatabaseBackend, n int) []string {
	out := make([]string, n)
	for i := range n {
		if backend == schema.PostgreSQLBackend {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}
