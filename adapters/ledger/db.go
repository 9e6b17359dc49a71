// Package ledger persists sweep runs and per-configuration results with sqlx.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"qintegrity/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the ledger database and applies migrations. For SQLite the
// dsn is a file path; for PostgreSQL a connection URL.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sqlx.ConnectContext(ctx, DriverSQLite, dsn+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err == nil {
			// a single writer avoids SQLITE_BUSY under concurrent recording
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sqlx.ConnectContext(ctx, DriverPostgres, dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
		}
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s ledger: %w", driver, err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
