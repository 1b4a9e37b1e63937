//go:build database

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStrataWithMySQL tests the strata CLI with a MySQL backend.
func TestStrataWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "strata",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/strata?parseTime=true", host, port.Port())
	exerciseBackend(t, "mysql", connStr)
}

// TestStrataWithPostgres tests the strata CLI with a PostgreSQL backend.
func TestStrataWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	exerciseBackend(t, "postgresql", connStr)
}

// exerciseBackend drives the cache and run commands against one database.
func exerciseBackend(t *testing.T, backend, connStr string) {
	dir := setupWorkspace(t)
	env := []string{
		"STRATA_CACHE_BACKEND=" + backend,
		"STRATA_CACHE_DB_CONNECT=" + connStr,
		"STRATA_RUN_BACKEND=" + backend,
		"STRATA_RUN_DB_CONNECT=" + connStr,
	}

	_, err := runStrata(t, dir, env, "runs", "migrate")
	require.NoError(t, err)

	_, err = runStrata(t, dir, env, "run")
	require.NoError(t, err)

	out, err := runStrata(t, dir, env, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	out, err = runStrata(t, dir, env, "runs", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	_, err = runStrata(t, dir, env, "cache", "clear")
	require.NoError(t, err)

	_, err = runStrata(t, dir, env, "runs", "clear")
	require.NoError(t, err)
}
