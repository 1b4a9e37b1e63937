package iocache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/rotisserie/eris"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationDir returns the embedded directory holding the backend's migrations.
func migrationDir(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "migrations/sqlite", nil
	case schema.MySQLBackend:
		return "migrations/mysql", nil
	case schema.PostgreSQLBackend:
		return "migrations/postgres", nil
	default:
		return "", eris.Errorf("migrations are not supported for %s backend", backend)
	}
}

// applySchema runs every up migration of the backend in version order.
// The statements are idempotent, so it is safe on a migrated database.
func applySchema(db *sql.DB, backend schema.DatabaseBackend) error {
	dir, err := migrationDir(backend)
	if err != nil {
		return err
	}
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return eris.Wrap(err, "failed to read embedded migrations")
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		body, err := migrationsFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return eris.Wrapf(err, "failed to read migration %s", name)
		}
		if _, err := db.Exec(string(body)); err != nil {
			return eris.Wrapf(err, "failed to apply migration %s", name)
		}
	}
	return nil
}

// MigrateRuns runs database migrations for the run store.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back all migrations.
//   - If targetVersion > 0, it migrates to the specified version.
func MigrateRuns(backend schema.DatabaseBackend, connStr string, targetVersion int) error {
	dir, err := migrationDir(backend)
	if err != nil {
		return err
	}
	db, err := openDB(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var driver database.Driver
	switch backend {
	case schema.SQLiteBackend:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case schema.MySQLBackend:
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case schema.PostgreSQLBackend:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	}
	if err != nil {
		return eris.Wrapf(err, "failed to create %s migrate driver", backend)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return eris.Wrap(err, "failed to access migrations directory")
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return eris.Wrap(err, "failed to create migration source")
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "strata", driver)
	if err != nil {
		return eris.Wrap(err, "failed to create migrate instance")
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return eris.Wrap(err, "failed to get current migration version")
	}
	if dirty {
		return eris.Errorf("database is in a dirty state at version %d; fix it manually or force a version", currentVersion)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Printf("No migration needed. Database is already at version %d\n", currentVersion)
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "failed to migrate from version %d", currentVersion)
	}

	newVersion, _, _ := m.Version()
	fmt.Printf("Successfully migrated from version %d to version %d\n", currentVersion, newVersion)
	return nil
}
