package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SweepConfig is the explicit configuration of a sweep
type SweepConfig struct {
	MaxTotalQubits int
	NumTrials      int
	NumRepetitions int
	// Seed drives every random stream; zero is resolved to a time-based seed
	Seed    int64
	Workers int
	// Z is the critical value used for per-configuration intervals
	Z     float64
	Trial TrialOptions
}

// DefaultSweepConfig returns the reference sweep: 5 qubits, 50 trials, one repetition
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MaxTotalQubits: 5,
		NumTrials:      50,
		NumRepetitions: 1,
		Workers:        1,
		Z:              stats.DefaultChartZ,
		Trial: TrialOptions{
			MaxRetries:  DefaultMaxRetries,
			AttackQubit: -1,
		},
	}
}

// Validate checks the sweep can produce at least one configuration
func (c SweepConfig) Validate() error {
	switch {
	case c.MaxTotalQubits < 2:
		return fmt.Errorf("%w: max total qubits must be at least 2, got %d", core.ErrInvalidConfig, c.MaxTotalQubits)
	case c.NumTrials < 1:
		return fmt.Errorf("%w: num trials must be positive, got %d", core.ErrInvalidConfig, c.NumTrials)
	case c.NumRepetitions < 1:
		return fmt.Errorf("%w: num repetitions must be positive, got %d", core.ErrInvalidConfig, c.NumRepetitions)
	case c.Trial.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", core.ErrInvalidConfig)
	case c.Trial.AttackQubit > 1:
		// qubits 0 and 1 exist in every configuration
		return fmt.Errorf("%w: fixed attack qubit must be 0 or 1, got %d", core.ErrInvalidConfig, c.Trial.AttackQubit)
	case c.Z <= 0:
		return fmt.Errorf("%w: z must be positive, got %g", core.ErrInvalidConfig, c.Z)
	}
	return nil
}

// SweepDeps are the collaborators of the sweep controller. Ledger and
// Reporter are optional.
type SweepDeps struct {
	Simulators ports.SimulatorFactory
	RNG        ports.RNGPort
	Matrices   ports.MatrixRepository
	Ledger     ports.LedgerWriterPort
	Reporter   ports.ProgressReporter
	Logger     zerolog.Logger
}

// RunOutcome is the result of a full sweep
type RunOutcome struct {
	RunID       core.RunID
	Seed        int64
	Results     []*experiment.SweepResult
	MatrixNames []string
	Elapsed     time.Duration
}

// SweepService is the sweep controller: it enumerates configurations, runs
// trials and persists one detection matrix per repetition.
type SweepService struct {
	cfg  SweepConfig
	deps SweepDeps
	mu   sync.Mutex // guards reporter calls from concurrent configurations
}

// NewSweepService creates a sweep controller
func NewSweepService(cfg SweepConfig, deps SweepDeps) (*SweepService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Simulators == nil || deps.RNG == nil {
		return nil, fmt.Errorf("%w: simulator factory and rng are required", core.ErrInvalidConfig)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &SweepService{cfg: cfg, deps: deps}, nil
}

// Config returns the resolved configuration, including the effective seed
func (s *SweepService) Config() SweepConfig {
	return s.cfg
}

// Run executes every repetition, persisting and recording each one
func (s *SweepService) Run(ctx context.Context) (*RunOutcome, error) {
	start := time.Now()
	runID := core.NewRunID()
	log := s.deps.Logger.With().Str("run_id", runID.String()).Int64("seed", s.cfg.Seed).Logger()

	if s.deps.Ledger != nil {
		err := s.deps.Ledger.CreateRun(ctx, ports.RunRecord{
			ID:             runID,
			StartedAt:      core.Now(),
			MaxTotalQubits: s.cfg.MaxTotalQubits,
			NumTrials:      s.cfg.NumTrials,
			NumRepetitions: s.cfg.NumRepetitions,
			Seed:           s.cfg.Seed,
			Status:         ports.RunStatusRunning,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	outcome := &RunOutcome{RunID: runID, Seed: s.cfg.Seed}
	for rep := 0; rep < s.cfg.NumRepetitions; rep++ {
		log.Info().Int("repetition", rep).Msg("starting repetition")

		result, err := s.RunRepetition(ctx, rep)
		if err != nil {
			s.finish(ctx, runID, ports.RunStatusFailed, log)
			return nil, fmt.Errorf("repetition %d: %w", rep, err)
		}
		result.RunID = runID

		name, err := s.persist(ctx, runID, result)
		if err != nil {
			s.finish(ctx, runID, ports.RunStatusFailed, log)
			return nil, err
		}

		if s.deps.Reporter != nil {
			s.deps.Reporter.RepetitionCompleted(result)
		}
		outcome.Results = append(outcome.Results, result)
		outcome.MatrixNames = append(outcome.MatrixNames, name)
	}

	s.finish(ctx, runID, ports.RunStatusComplete, log)
	outcome.Elapsed = time.Since(start)
	log.Info().Dur("elapsed", outcome.Elapsed).Int("repetitions", len(outcome.Results)).Msg("sweep complete")
	return outcome, nil
}

func (s *SweepService) persist(ctx context.Context, runID core.RunID, result *experiment.SweepResult) (string, error) {
	name := experiment.MatrixFileName(result.Repetition, result.NumTrials)
	if s.deps.Matrices != nil {
		if err := s.deps.Matrices.Save(ctx, name, result.Matrix); err != nil {
			return "", fmt.Errorf("failed to save matrix %s: %w", name, err)
		}
	}
	if s.deps.Ledger == nil {
		return name, nil
	}

	fingerprint := result.Matrix.Fingerprint()
	if err := s.deps.Ledger.RecordMatrix(ctx, runID, result.Repetition, name, fingerprint); err != nil {
		return "", fmt.Errorf("failed to record matrix %s: %w", name, err)
	}
	for _, summary := range result.Summaries {
		err := s.deps.Ledger.RecordConfig(ctx, ports.ConfigResult{
			RunID:         runID,
			Repetition:    result.Repetition,
			ConfigSummary: summary,
			MatrixName:    name,
			Fingerprint:   fingerprint,
		})
		if err != nil {
			return "", fmt.Errorf("failed to record %s: %w", summary.Config, err)
		}
	}
	return name, nil
}

func (s *SweepService) finish(ctx context.Context, runID core.RunID, status string, log zerolog.Logger) {
	if s.deps.Ledger == nil {
		return
	}
	// the run status must land even when ctx was cancelled
	if err := s.deps.Ledger.FinishRun(context.WithoutCancel(ctx), runID, status); err != nil {
		log.Error().Err(err).Str("status", status).Msg("failed to finish run")
	}
}

// RunRepetition fills one detection matrix. Every configuration draws from its
// own stream keyed by repetition and configuration, so the matrix depends only
// on the seed.
func (s *SweepService) RunRepetition(ctx context.Context, rep int) (*experiment.SweepResult, error) {
	start := time.Now()
	matrix, err := experiment.NewDetectionMatrix(s.cfg.MaxTotalQubits)
	if err != nil {
		return nil, err
	}

	configs := experiment.EnumerateConfigs(s.cfg.MaxTotalQubits)
	summaries := make([]experiment.ConfigSummary, len(configs))

	if s.cfg.Workers <= 1 {
		for i, cfg := range configs {
			summary, err := s.runConfig(ctx, rep, cfg)
			if err != nil {
				return nil, err
			}
			summaries[i] = summary
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)
		for i, cfg := range configs {
			g.Go(func() error {
				summary, err := s.runConfig(gctx, rep, cfg)
				if err != nil {
					return err
				}
				summaries[i] = summary
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, summary := range summaries {
		if err := matrix.Set(summary.Config, summary.Detections); err != nil {
			return nil, err
		}
	}

	return &experiment.SweepResult{
		Repetition: rep,
		NumTrials:  s.cfg.NumTrials,
		Matrix:     matrix,
		Summaries:  summaries,
		Elapsed:    time.Since(start),
	}, nil
}

func (s *SweepService) runConfig(ctx context.Context, rep int, cfg experiment.QubitConfig) (experiment.ConfigSummary, error) {
	stream, err := s.deps.RNG.Stream(ctx, "", fmt.Sprintf("repetition-%d", rep), cfg.String(), s.cfg.Seed)
	if err != nil {
		return experiment.ConfigSummary{}, err
	}
	sim := s.deps.Simulators(stream)
	log := s.deps.Logger.With().Int("repetition", rep).Int("m", cfg.DataQubits).Int("d", cfg.SignatureQubits).Logger()
	runner := NewTrialRunner(sim, stream, s.cfg.Trial, log)

	base, err := GenerateBaseState(sim, cfg)
	if err != nil {
		return experiment.ConfigSummary{}, fmt.Errorf("%s: %w", cfg, err)
	}

	summary := experiment.ConfigSummary{Config: cfg, Trials: s.cfg.NumTrials}
	for trial := 0; trial < s.cfg.NumTrials; trial++ {
		record, err := runner.RunConclusiveTrial(ctx, cfg.Total(), cfg.SignatureQubits, base)
		if err != nil {
			return experiment.ConfigSummary{}, fmt.Errorf("%s trial %d: %w", cfg, trial, err)
		}
		summary.NoEffectRetries += record.Retries
		if record.Outcome == experiment.Detected {
			summary.Detections++
		}
	}
	summary.Interval = stats.Wilson(summary.Detections, summary.Trials, s.cfg.Z)

	log.Debug().Int("detections", summary.Detections).Int("no_effect_retries", summary.NoEffectRetries).Msg("configuration complete")
	if s.deps.Reporter != nil {
		s.mu.Lock()
		s.deps.Reporter.ConfigCompleted(summary)
		s.mu.Unlock()
	}
	return summary, nil
}
