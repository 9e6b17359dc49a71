package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"qintegrity/adapters/console"
	"qintegrity/domain/core"
	"qintegrity/internal/api"
	"qintegrity/ports"
)

func (c *cli) newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded sweep runs, or the configuration results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			led, closeLedger, err := c.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()
			if led == nil {
				return fmt.Errorf("run ledger disabled (LEDGER_DRIVER=none)")
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAlignment(tablewriter.ALIGN_RIGHT)

			if len(args) == 0 {
				runs, err := led.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				table.SetHeader([]string{"id", "started", "status", "max qubits", "trials", "repetitions", "seed"})
				for _, r := range runs {
					table.Append([]string{
						r.ID.String(),
						r.StartedAt.String(),
						r.Status,
						strconv.Itoa(r.MaxTotalQubits),
						strconv.Itoa(r.NumTrials),
						strconv.Itoa(r.NumRepetitions),
						strconv.FormatInt(r.Seed, 10),
					})
				}
				table.Render()
				return nil
			}

			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			results, err := led.GetConfigResults(ctx, runID)
			if err != nil {
				return err
			}
			table.SetHeader([]string{"rep", "m", "d", "detections", "trials", "retries", "lower", "upper"})
			for _, r := range results {
				table.Append([]string{
					strconv.Itoa(r.Repetition),
					strconv.Itoa(r.Config.DataQubits),
					strconv.Itoa(r.Config.SignatureQubits),
					strconv.Itoa(r.Detections),
					strconv.Itoa(r.Trials),
					strconv.Itoa(r.NoEffectRetries),
					strconv.FormatFloat(r.Interval.Lower, 'f', 4, 64),
					strconv.FormatFloat(r.Interval.Upper, 'f', 4, 64),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func (c *cli) newServeCmd() *cobra.Command {
	var port string
	var sweep bool
	var f runFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results over HTTP, optionally while running a sweep",
		Long: `Serve the results API:

  GET /healthz
  GET /api/matrices
  GET /api/matrices/:name?z=
  GET /api/matrices/:name/chart?z=&dpi=&trials=
  GET /api/aggregate?confidence=
  GET /api/runs
  GET /api/runs/:id
  GET /api/runs/:id/configs
  GET /api/events            (Server-Sent Events sweep progress)

With --sweep a sweep runs in the background and streams progress to
/api/events; the sweep flags of "run" apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = c.cfg.Server.Port
			}
			ctx := cmd.Context()
			c.startProfiling(ctx)

			matrices, err := c.openMatrices()
			if err != nil {
				return err
			}
			led, closeLedger, err := c.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			hub := api.NewSSEHub(c.logger)
			defer hub.Close()

			var reader ports.LedgerReaderPort
			if led != nil {
				reader = led
			}
			server := api.NewServer(c.reportService(matrices), reader, hub, c.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(gctx, ":"+port)
			})
			if sweep {
				reporter := api.MultiReporter{
					console.NewReporter(cmd.OutOrStdout()),
					api.NewProgressBroadcaster(hub, api.DefaultTopic),
				}
				g.Go(func() error {
					return c.runSweep(gctx, cmd, f, reporter)
				})
			}
			return g.Wait()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&port, "port", "", "HTTP port (PORT)")
	flags.BoolVar(&sweep, "sweep", false, "Run a sweep in the background and stream its progress")
	flags.IntVar(&f.maxTotalQubits, "max-total-qubits", 0, "Largest register size (QI_MAX_TOTAL_QUBITS)")
	flags.IntVar(&f.trials, "trials", 0, "Conclusive trials per configuration (QI_NUM_TRIALS)")
	flags.IntVar(&f.repetitions, "repetitions", 0, "Independent repetitions (QI_NUM_REPETITIONS)")
	flags.Int64Var(&f.seed, "seed", 0, "Random seed; 0 picks a time-based seed (QI_SEED)")
	flags.IntVar(&f.workers, "workers", 0, "Configurations simulated in parallel (QI_WORKERS)")
	flags.IntVar(&f.maxRetries, "max-retries", 0, "No-effect retries allowed per trial (QI_MAX_RETRIES)")
	flags.IntVar(&f.attackQubit, "attack-qubit", -1, "Fixed attacked qubit (0 or 1); -1 picks one at random (QI_ATTACK_QUBIT)")

	return cmd
}
