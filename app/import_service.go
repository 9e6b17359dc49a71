package app

import (
	"context"
	"fmt"
	"sort"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/ports"

	"github.com/rs/zerolog"
)

// ImportService backfills the run ledger from matrix files written without
// one, for example by an earlier run with LEDGER_DRIVER=none.
type ImportService struct {
	matrices ports.MatrixRepository
	ledger   ports.LedgerPort
	z        float64
	logger   zerolog.Logger
}

// NewImportService creates an import service; z <= 0 selects 1.96
func NewImportService(matrices ports.MatrixRepository, ledger ports.LedgerPort, z float64, logger zerolog.Logger) *ImportService {
	if z <= 0 {
		z = stats.DefaultChartZ
	}
	return &ImportService{matrices: matrices, ledger: ledger, z: z, logger: logger}
}

// Import records every stored matrix. Matrices sharing a trial count form one
// run whose repetitions are taken from the file names. Matrices already linked
// to a run under the same name and fingerprint are skipped, so repeated imports
// add nothing. NoEffect retries are not recoverable from a matrix and are
// recorded as zero.
func (s *ImportService) Import(ctx context.Context) ([]core.RunID, error) {
	names, err := s.matrices.List(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[int][]string)
	for _, name := range names {
		_, trials, err := experiment.ParseMatrixFileName(name)
		if err != nil {
			return nil, err
		}
		groups[trials] = append(groups[trials], name)
	}

	trialCounts := make([]int, 0, len(groups))
	for trials := range groups {
		trialCounts = append(trialCounts, trials)
	}
	sort.Ints(trialCounts)

	var runs []core.RunID
	for _, trials := range trialCounts {
		runID, err := s.importGroup(ctx, trials, groups[trials])
		if err != nil {
			return runs, err
		}
		if runID != "" {
			runs = append(runs, runID)
		}
	}
	return runs, nil
}

// importGroup returns an empty run ID when every matrix in the group is already recorded
func (s *ImportService) importGroup(ctx context.Context, trials int, candidates []string) (core.RunID, error) {
	var (
		names    []string
		loaded   []*experiment.DetectionMatrix
		maxTotal int
	)
	for _, name := range candidates {
		m, err := s.matrices.Load(ctx, name)
		if err != nil {
			return "", err
		}
		seen, err := s.ledger.MatrixRecorded(ctx, name, m.Fingerprint())
		if err != nil {
			return "", err
		}
		if seen {
			s.logger.Debug().Str("matrix", name).Msg("matrix already recorded, skipping")
			continue
		}
		names = append(names, name)
		loaded = append(loaded, m)
		if m.MaxTotalQubits() > maxTotal {
			maxTotal = m.MaxTotalQubits()
		}
	}
	if len(names) == 0 {
		return "", nil
	}

	runID := core.NewRunID()
	err := s.ledger.CreateRun(ctx, ports.RunRecord{
		ID:             runID,
		StartedAt:      core.Now(),
		MaxTotalQubits: maxTotal,
		NumTrials:      trials,
		NumRepetitions: len(names),
		Status:         ports.RunStatusRunning,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	for i, name := range names {
		rep, _, _ := experiment.ParseMatrixFileName(name)
		m := loaded[i]
		if err := s.ledger.RecordMatrix(ctx, runID, rep, name, m.Fingerprint()); err != nil {
			return runID, s.fail(ctx, runID, err)
		}
		for _, cell := range m.Cells() {
			detections := int(cell.Detections)
			err := s.ledger.RecordConfig(ctx, ports.ConfigResult{
				RunID:      runID,
				Repetition: rep,
				ConfigSummary: experiment.ConfigSummary{
					Config:     cell.Config,
					Detections: detections,
					Trials:     trials,
					Interval:   stats.Wilson(detections, trials, s.z),
				},
				MatrixName:  name,
				Fingerprint: m.Fingerprint(),
			})
			if err != nil {
				return runID, s.fail(ctx, runID, err)
			}
		}
		s.logger.Info().Str("run_id", runID.String()).Str("matrix", name).Msg("matrix imported")
	}

	if err := s.ledger.FinishRun(ctx, runID, ports.RunStatusComplete); err != nil {
		return runID, err
	}
	return runID, nil
}

func (s *ImportService) fail(ctx context.Context, runID core.RunID, cause error) error {
	if err := s.ledger.FinishRun(context.WithoutCancel(ctx), runID, ports.RunStatusFailed); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to mark run failed")
	}
	return cause
}
