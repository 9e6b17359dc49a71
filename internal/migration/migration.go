package migration

import (
	"context"

	"qintegrity/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the run ledger schema. Statements are portable
// between SQLite and PostgreSQL and safe to repeat.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSweepRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create sweep_runs table")
	}

	if err := r.createRunMatricesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create run_matrices table")
	}

	if err := r.createConfigResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create config_results table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createSweepRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sweep_runs (
			id VARCHAR(36) PRIMARY KEY,
			started_at VARCHAR(40) NOT NULL,
			finished_at VARCHAR(40),
			max_total_qubits INTEGER NOT NULL,
			num_trials INTEGER NOT NULL,
			num_repetitions INTEGER NOT NULL,
			seed BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRunMatricesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_matrices (
			run_id VARCHAR(36) NOT NULL REFERENCES sweep_runs(id) ON DELETE CASCADE,
			repetition INTEGER NOT NULL,
			name VARCHAR(255) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			recorded_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (run_id, repetition)
		)
	`)
	return err
}

func (r *MigrationRunner) createConfigResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS config_results (
			run_id VARCHAR(36) NOT NULL REFERENCES sweep_runs(id) ON DELETE CASCADE,
			repetition INTEGER NOT NULL,
			data_qubits INTEGER NOT NULL,
			signature_qubits INTEGER NOT NULL,
			detections INTEGER NOT NULL,
			trials INTEGER NOT NULL,
			no_effect_retries INTEGER NOT NULL DEFAULT 0,
			lower_bound DOUBLE PRECISION NOT NULL,
			upper_bound DOUBLE PRECISION NOT NULL,
			matrix_name VARCHAR(255),
			fingerprint VARCHAR(64),
			PRIMARY KEY (run_id, repetition, data_qubits, signature_qubits)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sweep_runs_started_at ON sweep_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_config_results_config ON config_results(data_qubits, signature_qubits)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
