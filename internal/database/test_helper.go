//go:build integration

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// SetupTestDB connects to the local integration test database and runs
// migrations. The test database is expected to already exist (created by
// docker-compose or equivalent).
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	projectRoot := filepath.Join(dir, "../..")
	migrationsPath := filepath.Join(projectRoot, "internal", "database", "migrations")

	cfg := Config{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DB:              "lnurl_gateway_test",
		SslMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5,
		MaxConnIdleTime: 1,
		MigrationPath:   "file://" + migrationsPath,
	}

	db, err := NewDB(cfg)
	require.NoError(t, err, "failed to connect to test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations on test database")

	return db
}

// CleanupTestDB truncates all tables to ensure clean state between tests.
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tables := []string{"offer_record", "offer_metadata", "discovery_backend"}
	for _, table := range tables {
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		_, err := db.pool.Exec(ctx, query)
		require.NoError(t, err, "failed to truncate table %s", table)
	}
	_, err := db.pool.Exec(ctx, "UPDATE discovery_backend_etag SET value = 0 WHERE id = 1")
	require.NoError(t, err)
}
