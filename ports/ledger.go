package ports

import (
	"context"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
)

// RunRecord describes one sweep invocation
type RunRecord struct {
	ID             core.RunID     `json:"id" db:"id"`
	StartedAt      core.Timestamp `json:"started_at" db:"-"`
	FinishedAt     core.Timestamp `json:"finished_at,omitempty" db:"-"`
	MaxTotalQubits int            `json:"max_total_qubits" db:"max_total_qubits"`
	NumTrials      int            `json:"num_trials" db:"num_trials"`
	NumRepetitions int            `json:"num_repetitions" db:"num_repetitions"`
	Seed           int64          `json:"seed" db:"seed"`
	Status         string         `json:"status" db:"status"`
}

// Run statuses
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// ConfigResult is one ledger row: a configuration's outcome in one repetition
type ConfigResult struct {
	RunID      core.RunID `json:"run_id"`
	Repetition int        `json:"repetition"`
	experiment.ConfigSummary
	MatrixName  string    `json:"matrix_name,omitempty"`
	Fingerprint core.Hash `json:"fingerprint,omitempty"`
}

// LedgerWriterPort provides append-only write access to run records
type LedgerWriterPort interface {
	CreateRun(ctx context.Context, run RunRecord) error
	RecordConfig(ctx context.Context, result ConfigResult) error
	RecordMatrix(ctx context.Context, runID core.RunID, repetition int, name string, fingerprint core.Hash) error
	FinishRun(ctx context.Context, runID core.RunID, status string) error
}

// LedgerReaderPort provides read-only access for queries and the API
type LedgerReaderPort interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, runID core.RunID) (*RunRecord, error)
	GetConfigResults(ctx context.Context, runID core.RunID) ([]ConfigResult, error)
	// MatrixRecorded reports whether any run already holds this exact matrix file
	MatrixRecorded(ctx context.Context, name string, fingerprint core.Hash) (bool, error)
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
