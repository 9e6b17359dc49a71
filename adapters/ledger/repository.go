package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/internal/errors"
	"qintegrity/ports"

	"github.com/jmoiron/sqlx"
)

// Repository implements ports.LedgerPort on SQLite or PostgreSQL
type Repository struct {
	db *sqlx.DB
}

var _ ports.LedgerPort = (*Repository)(nil)

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(ts core.Timestamp) string {
	return ts.Time().UTC().Format(timeLayout)
}

// NewRepository wraps an open, migrated database
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type runRow struct {
	ID             string         `db:"id"`
	StartedAt      string         `db:"started_at"`
	FinishedAt     sql.NullString `db:"finished_at"`
	MaxTotalQubits int            `db:"max_total_qubits"`
	NumTrials      int            `db:"num_trials"`
	NumRepetitions int            `db:"num_repetitions"`
	Seed           int64          `db:"seed"`
	Status         string         `db:"status"`
}

func (r runRow) record() (ports.RunRecord, error) {
	rec := ports.RunRecord{
		ID:             core.RunID(r.ID),
		MaxTotalQubits: r.MaxTotalQubits,
		NumTrials:      r.NumTrials,
		NumRepetitions: r.NumRepetitions,
		Seed:           r.Seed,
		Status:         r.Status,
	}
	started, err := core.ParseTimestamp(r.StartedAt)
	if err != nil {
		return ports.RunRecord{}, err
	}
	rec.StartedAt = started
	if r.FinishedAt.Valid {
		finished, err := core.ParseTimestamp(r.FinishedAt.String)
		if err != nil {
			return ports.RunRecord{}, err
		}
		rec.FinishedAt = finished
	}
	return rec, nil
}

type configRow struct {
	RunID           string         `db:"run_id"`
	Repetition      int            `db:"repetition"`
	DataQubits      int            `db:"data_qubits"`
	SignatureQubits int            `db:"signature_qubits"`
	Detections      int            `db:"detections"`
	Trials          int            `db:"trials"`
	NoEffectRetries int            `db:"no_effect_retries"`
	LowerBound      float64        `db:"lower_bound"`
	UpperBound      float64        `db:"upper_bound"`
	MatrixName      sql.NullString `db:"matrix_name"`
	Fingerprint     sql.NullString `db:"fingerprint"`
}

func (r configRow) result() ports.ConfigResult {
	return ports.ConfigResult{
		RunID:      core.RunID(r.RunID),
		Repetition: r.Repetition,
		ConfigSummary: experiment.ConfigSummary{
			Config:          experiment.QubitConfig{DataQubits: r.DataQubits, SignatureQubits: r.SignatureQubits},
			Detections:      r.Detections,
			Trials:          r.Trials,
			NoEffectRetries: r.NoEffectRetries,
			Interval:        stats.Interval{Lower: r.LowerBound, Upper: r.UpperBound},
		},
		MatrixName:  r.MatrixName.String,
		Fingerprint: core.Hash(r.Fingerprint.String),
	}
}

// CreateRun inserts a new run record
func (r *Repository) CreateRun(ctx context.Context, run ports.RunRecord) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sweep_runs (id, started_at, max_total_qubits, num_trials, num_repetitions, seed, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), run.ID.String(), formatTime(run.StartedAt), run.MaxTotalQubits, run.NumTrials, run.NumRepetitions, run.Seed, run.Status)
	if err != nil {
		return errors.StorageError("create run", err)
	}
	return nil
}

// RecordConfig appends one configuration result
func (r *Repository) RecordConfig(ctx context.Context, result ports.ConfigResult) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO config_results (run_id, repetition, data_qubits, signature_qubits, detections, trials,
			no_effect_retries, lower_bound, upper_bound, matrix_name, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), result.RunID.String(), result.Repetition, result.Config.DataQubits, result.Config.SignatureQubits,
		result.Detections, result.Trials, result.NoEffectRetries, result.Interval.Lower, result.Interval.Upper,
		result.MatrixName, result.Fingerprint.String())
	if err != nil {
		return errors.StorageError("record config", err)
	}
	return nil
}

// RecordMatrix links a persisted matrix to its run
func (r *Repository) RecordMatrix(ctx context.Context, runID core.RunID, repetition int, name string, fingerprint core.Hash) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO run_matrices (run_id, repetition, name, fingerprint, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`), runID.String(), repetition, name, fingerprint.String(), formatTime(core.Now()))
	if err != nil {
		return errors.StorageError("record matrix", err)
	}
	return nil
}

// MatrixRecorded reports whether a matrix with this name and fingerprint is linked to any run
func (r *Repository) MatrixRecorded(ctx context.Context, name string, fingerprint core.Hash) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM run_matrices WHERE name = ? AND fingerprint = ?
	`), name, fingerprint.String())
	if err != nil {
		return false, errors.StorageError("check matrix", err)
	}
	return n > 0, nil
}

// FinishRun sets the terminal status of a run
func (r *Repository) FinishRun(ctx context.Context, runID core.RunID, status string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sweep_runs SET status = ?, finished_at = ? WHERE id = ?
	`), status, formatTime(core.Now()), runID.String())
	if err != nil {
		return errors.StorageError("finish run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("run", runID.String())
	}
	return nil
}

// ListRuns returns the most recent runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, started_at, finished_at, max_total_qubits, num_trials, num_repetitions, seed, status
		FROM sweep_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, errors.StorageError("list runs", err)
	}

	runs := make([]ports.RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, errors.StorageError("decode run", err)
		}
		runs = append(runs, rec)
	}
	return runs, nil
}

// GetRun retrieves one run
func (r *Repository) GetRun(ctx context.Context, runID core.RunID) (*ports.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, started_at, finished_at, max_total_qubits, num_trials, num_repetitions, seed, status
		FROM sweep_runs
		WHERE id = ?
	`), runID.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	if err != nil {
		return nil, errors.StorageError("get run", err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, errors.StorageError("decode run", err)
	}
	return &rec, nil
}

// GetConfigResults returns a run's results ordered by repetition then configuration
func (r *Repository) GetConfigResults(ctx context.Context, runID core.RunID) ([]ports.ConfigResult, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var rows []configRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, repetition, data_qubits, signature_qubits, detections, trials,
			no_effect_retries, lower_bound, upper_bound, matrix_name, fingerprint
		FROM config_results
		WHERE run_id = ?
		ORDER BY repetition, signature_qubits, data_qubits
	`), runID.String())
	if err != nil {
		return nil, errors.StorageError("get config results", err)
	}
	results := make([]ports.ConfigResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.result())
	}
	return results, nil
}
