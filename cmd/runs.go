package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/internal/iocache"
	"github.com/huangsam/strata/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runBackendFromConfig reads the run backend, treating an empty value as none.
func runBackendFromConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("run-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run history operations.
func runsSetup() error {
	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}

	// No level cache for run history commands
	if err := iocache.InitStores(schema.NoneBackend, "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup is a specialized setup that does NOT initialize stores,
// allowing migrations to run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsCmd focused on run history management.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage tracked runs and exports",
	Long: `Manage the history of tracked runs.

When --run-backend is set, every run stores:
- Run metadata (id, timestamps, duration, rules digest, configuration)
- One summary per logger, level and variable (points, missing, flagged, status)

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export runs and summaries to Parquet
  clear   - Remove all tracked runs
  migrate - Run database schema migrations

Examples:
  strata runs status --run-backend sqlite
  strata runs export --run-backend sqlite --output-file history`,
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked runs",
	Long: `Delete every tracked run and variable summary.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  strata runs export --output-file backup
  strata runs clear`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(cfg.RunBackend, contract.GetRunDBFilePath(), cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsStatusCmd shows run tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show the backend, the number of tracked runs, the latest run and table sizes.

Examples:
  strata runs status --run-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetRunStore()
		if store == nil {
			fmt.Println("Run tracking is disabled; set --run-backend to enable it.")
			return
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked runs to Parquet",
	Long: `Export all tracked runs and variable summaries to Parquet.

Writes <output-file>.runs.parquet and <output-file>.variable_summaries.parquet.

Requires: --output-file parameter

Examples:
  strata runs export --output-file history
  duckdb -c "SELECT level, status, count(*) FROM read_parquet('history.variable_summaries.parquet') GROUP BY ALL"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteRunsExport(os.Stdout, iocache.Manager.GetRunStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the run store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  strata runs migrate --run-backend postgresql

  # Roll back everything
  strata runs migrate --run-backend postgresql --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(cfg.RunBackend, cfg.RunDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
