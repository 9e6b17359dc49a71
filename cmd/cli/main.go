package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"qintegrity/adapters/ledger"
	"qintegrity/internal/config"
	"qintegrity/internal/errors"
	"qintegrity/internal/logger"
	"qintegrity/internal/profiling"
	"qintegrity/ports"
)

// cli carries state shared by every subcommand after PersistentPreRunE
type cli struct {
	cfg    *config.Config
	logger zerolog.Logger

	outputDir string
	logLevel  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "qintegrity",
		Short: "Integrity detection sweep for Clifford-encrypted quantum data",
		Long: `qintegrity measures how often a signature check detects a random
single-qubit attack on Clifford-encrypted quantum data, for every split of a
register into data and signature qubits.

Configuration is read from the environment (and a .env file if present);
flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.outputDir, "output-dir", "", "Directory for matrices, charts and the sqlite ledger (QI_OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (LOG_LEVEL)")

	rootCmd.AddCommand(
		c.newRunCmd(),
		c.newChartCmd(),
		c.newIntervalCmd(),
		c.newAggregateCmd(),
		c.newExportCmd(),
		c.newRunsCmd(),
		c.newServeCmd(),
	)
	return rootCmd
}

func (c *cli) setup() error {
	// a missing .env is fine
	_ = godotenv.Load()

	if c.outputDir != "" {
		if err := os.Setenv("QI_OUTPUT_DIR", c.outputDir); err != nil {
			return err
		}
	}
	if c.logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", c.logLevel); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(c.logger)
	return nil
}

// startProfiling serves pprof for the lifetime of ctx when PPROF_ENABLED is set
func (c *cli) startProfiling(ctx context.Context) {
	if c.cfg.Profiling.Enabled {
		profiling.Start(ctx, c.cfg.Profiling.Port, c.logger)
	}
}

// openLedger returns nil when LEDGER_DRIVER=none
func (c *cli) openLedger(ctx context.Context) (ports.LedgerPort, func(), error) {
	if c.cfg.Ledger.Driver == "none" {
		return nil, func() {}, nil
	}
	db, err := ledger.Open(ctx, c.cfg.Ledger.Driver, c.cfg.Ledger.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open run ledger")
	}
	c.logger.Debug().Str("driver", c.cfg.Ledger.Driver).Msg("run ledger opened")
	return ledger.NewRepository(db), func() { _ = db.Close() }, nil
}
