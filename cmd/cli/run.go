package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qintegrity/adapters/chart"
	"qintegrity/adapters/console"
	"qintegrity/adapters/excel"
	"qintegrity/adapters/quantum/statevector"
	"qintegrity/adapters/rng"
	"qintegrity/adapters/storage/npy"
	"qintegrity/app"
	"qintegrity/domain/core"
	"qintegrity/internal/errors"
	"qintegrity/ports"
)

type runFlags struct {
	maxTotalQubits int
	trials         int
	repetitions    int
	seed           int64
	workers        int
	maxRetries     int
	attackQubit    int
	charts         bool
}

func (c *cli) newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the detection sweep and save one matrix per repetition",
		Long: `Run the detection sweep over every (data, signature) split with
data + signature <= max-total-qubits.

Each repetition prints per-configuration results, the detection matrix and
the elapsed time, and saves num_detections_array_<rep>_for_<trials>_num_trials.npy
to the output directory.

Example: qintegrity run --max-total-qubits 5 --trials 50 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.startProfiling(cmd.Context())
			return c.runSweep(cmd.Context(), cmd, f, console.NewReporter(cmd.OutOrStdout()))
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.maxTotalQubits, "max-total-qubits", 0, "Largest register size (QI_MAX_TOTAL_QUBITS)")
	flags.IntVar(&f.trials, "trials", 0, "Conclusive trials per configuration (QI_NUM_TRIALS)")
	flags.IntVar(&f.repetitions, "repetitions", 0, "Independent repetitions (QI_NUM_REPETITIONS)")
	flags.Int64Var(&f.seed, "seed", 0, "Random seed; 0 picks a time-based seed (QI_SEED)")
	flags.IntVar(&f.workers, "workers", 0, "Configurations simulated in parallel (QI_WORKERS)")
	flags.IntVar(&f.maxRetries, "max-retries", 0, "No-effect retries allowed per trial (QI_MAX_RETRIES)")
	flags.IntVar(&f.attackQubit, "attack-qubit", -1, "Fixed attacked qubit (0 or 1); -1 picks one at random (QI_ATTACK_QUBIT)")
	flags.BoolVar(&f.charts, "chart", false, "Render a chart for every stored matrix when the sweep completes")

	return cmd
}

// sweepConfig merges the environment configuration with explicitly set flags
func (c *cli) sweepConfig(cmd *cobra.Command, f runFlags) app.SweepConfig {
	sc := app.DefaultSweepConfig()
	sc.MaxTotalQubits = c.cfg.Sweep.MaxTotalQubits
	sc.NumTrials = c.cfg.Sweep.NumTrials
	sc.NumRepetitions = c.cfg.Sweep.NumRepetitions
	sc.Seed = c.cfg.Sweep.Seed
	sc.Workers = c.cfg.Sweep.Workers
	sc.Z = c.cfg.Chart.Z
	sc.Trial.MaxRetries = c.cfg.Sweep.MaxRetries
	sc.Trial.AttackQubit = c.cfg.Sweep.AttackQubit

	flags := cmd.Flags()
	if flags.Changed("max-total-qubits") {
		sc.MaxTotalQubits = f.maxTotalQubits
	}
	if flags.Changed("trials") {
		sc.NumTrials = f.trials
	}
	if flags.Changed("repetitions") {
		sc.NumRepetitions = f.repetitions
	}
	if flags.Changed("seed") {
		sc.Seed = f.seed
	}
	if flags.Changed("workers") {
		sc.Workers = f.workers
	}
	if flags.Changed("max-retries") {
		sc.Trial.MaxRetries = f.maxRetries
	}
	if flags.Changed("attack-qubit") {
		sc.Trial.AttackQubit = f.attackQubit
	}
	return sc
}

func (c *cli) runSweep(ctx context.Context, cmd *cobra.Command, f runFlags, reporter ports.ProgressReporter) error {
	matrices, err := npy.NewRepository(c.cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	led, closeLedger, err := c.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	deps := app.SweepDeps{
		Simulators: statevector.Factory(statevector.Options{
			MaxResamples: c.cfg.Sim.MaxResamples,
			Logger:       c.logger,
		}),
		RNG:      rng.New(),
		Matrices: matrices,
		Reporter: reporter,
		Logger:   c.logger,
	}
	if led != nil {
		deps.Ledger = led
	}

	svc, err := app.NewSweepService(c.sweepConfig(cmd, f), deps)
	if err != nil {
		return err
	}
	c.logger.Info().
		Int("max_total_qubits", svc.Config().MaxTotalQubits).
		Int("num_trials", svc.Config().NumTrials).
		Int("repetitions", svc.Config().NumRepetitions).
		Int64("seed", svc.Config().Seed).
		Int("workers", svc.Config().Workers).
		Msg("starting sweep")

	outcome, err := svc.Run(ctx)
	if err != nil {
		if core.IsBudgetError(err) {
			return errors.SimulationError("sweep aborted", err)
		}
		return err
	}
	for _, name := range outcome.MatrixNames {
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", matrices.Path(name))
	}
	c.logger.Info().Str("run_id", outcome.RunID.String()).Dur("elapsed", outcome.Elapsed).Msg("sweep complete")

	if !f.charts {
		return nil
	}
	written, err := c.reportService(matrices).RenderAll(ctx)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", path)
	}
	return nil
}

func (c *cli) reportService(matrices ports.MatrixRepository) *app.ReportService {
	return app.NewReportService(matrices, chart.NewRenderer(), excel.NewWriter(excel.DefaultWorkbookConfig()), c.cfg.Paths.OutputDir, ports.ChartOptions{
		Z:         c.cfg.Chart.Z,
		DPI:       c.cfg.Chart.DPI,
		NumTrials: c.cfg.Chart.NumTrials,
	}, c.logger)
}

func (c *cli) openMatrices() (*npy.Repository, error) {
	if _, err := os.Stat(c.cfg.Paths.OutputDir); err != nil {
		return nil, fmt.Errorf("output directory %s: %w", c.cfg.Paths.OutputDir, err)
	}
	return npy.NewRepository(c.cfg.Paths.OutputDir)
}
