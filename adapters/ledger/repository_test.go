package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func newRun(started time.Time) ports.RunRecord {
	return ports.RunRecord{
		ID:             core.NewRunID(),
		StartedAt:      core.Timestamp(started),
		MaxTotalQubits: 5,
		NumTrials:      50,
		NumRepetitions: 1,
		Seed:           42,
		Status:         ports.RunStatusRunning,
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	run := newRun(time.Now().UTC())
	require.NoError(t, repo.CreateRun(ctx, run))

	fingerprint := core.NewHash([]byte("matrix"))
	name := experiment.MatrixFileName(0, 50)
	require.NoError(t, repo.RecordMatrix(ctx, run.ID, 0, name, fingerprint))

	summaries := []experiment.ConfigSummary{
		{Config: experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1}, Detections: 30, Trials: 50, NoEffectRetries: 1, Interval: stats.Wilson(30, 50, 1.96)},
		{Config: experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}, Detections: 40, Trials: 50, Interval: stats.Wilson(40, 50, 1.96)},
		{Config: experiment.QubitConfig{DataQubits: 1, SignatureQubits: 2}, Detections: 45, Trials: 50, Interval: stats.Wilson(45, 50, 1.96)},
	}
	for _, s := range summaries {
		require.NoError(t, repo.RecordConfig(ctx, ports.ConfigResult{
			RunID: run.ID, Repetition: 0, ConfigSummary: s, MatrixName: name, Fingerprint: fingerprint,
		}))
	}
	require.NoError(t, repo.FinishRun(ctx, run.ID, ports.RunStatusComplete))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RunStatusComplete, got.Status)
	assert.Equal(t, int64(42), got.Seed)
	assert.False(t, got.FinishedAt.IsZero())
	assert.True(t, got.StartedAt.Time().Equal(run.StartedAt.Time()))

	results, err := repo.GetConfigResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// signature-major order
	assert.Equal(t, experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}, results[0].Config)
	assert.Equal(t, experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1}, results[1].Config)
	assert.Equal(t, experiment.QubitConfig{DataQubits: 1, SignatureQubits: 2}, results[2].Config)
	assert.Equal(t, 1, results[1].NoEffectRetries)
	assert.InDelta(t, summaries[1].Interval.Lower, results[0].Interval.Lower, 1e-12)
	assert.Equal(t, fingerprint, results[0].Fingerprint)
	assert.Equal(t, name, results[0].MatrixName)
}

func TestMatrixRecorded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	name := experiment.MatrixFileName(0, 50)
	fingerprint := core.NewHash([]byte("matrix"))

	seen, err := repo.MatrixRecorded(ctx, name, fingerprint)
	require.NoError(t, err)
	assert.False(t, seen)

	run := newRun(time.Now().UTC())
	require.NoError(t, repo.CreateRun(ctx, run))
	require.NoError(t, repo.RecordMatrix(ctx, run.ID, 0, name, fingerprint))

	seen, err = repo.MatrixRecorded(ctx, name, fingerprint)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = repo.MatrixRecorded(ctx, name, core.NewHash([]byte("rewritten")))
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = repo.MatrixRecorded(ctx, experiment.MatrixFileName(1, 50), fingerprint)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newRun(base)
	newer := newRun(base.Add(1500 * time.Millisecond))
	require.NoError(t, repo.CreateRun(ctx, newer))
	require.NoError(t, repo.CreateRun(ctx, older))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.True(t, runs[1].FinishedAt.IsZero())

	limited, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMissingRun(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	missing := core.NewRunID()

	_, err := repo.GetRun(ctx, missing)
	assert.True(t, core.IsNotFoundError(err))

	_, err = repo.GetConfigResults(ctx, missing)
	assert.True(t, core.IsNotFoundError(err))

	assert.True(t, core.IsNotFoundError(repo.FinishRun(ctx, missing, ports.RunStatusFailed)))
}

func TestDuplicateConfigRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	run := newRun(time.Now().UTC())
	require.NoError(t, repo.CreateRun(ctx, run))

	result := ports.ConfigResult{
		RunID:         run.ID,
		ConfigSummary: experiment.ConfigSummary{Config: experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}, Trials: 50},
	}
	require.NoError(t, repo.RecordConfig(ctx, result))
	assert.Error(t, repo.RecordConfig(ctx, result))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.Error(t, err)
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
