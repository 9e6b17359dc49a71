package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"qintegrity/adapters/excel"
	"qintegrity/app"
	"qintegrity/domain/experiment"
)

func (c *cli) newChartCmd() *cobra.Command {
	var z float64
	var dpi, trials int

	cmd := &cobra.Command{
		Use:   "chart [matrix-file...]",
		Short: "Render 3D detection charts with Wilson confidence intervals",
		Long: `Render one PNG bar chart per detection matrix. With no arguments every
matrix in the output directory is rendered.

The trial count is read from each matrix file name unless --trials is set.

Example: qintegrity chart num_detections_array_0_for_50_num_trials.npy --z 2.58`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("z") {
				c.cfg.Chart.Z = z
			}
			if cmd.Flags().Changed("dpi") {
				c.cfg.Chart.DPI = dpi
			}
			if cmd.Flags().Changed("trials") {
				c.cfg.Chart.NumTrials = trials
			}

			matrices, err := c.openMatrices()
			if err != nil {
				return err
			}
			svc := c.reportService(matrices)
			ctx := cmd.Context()

			if len(args) == 0 {
				written, err := svc.RenderAll(ctx)
				for _, path := range written {
					fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
				}
				if err == nil && len(written) == 0 {
					c.logger.Warn().Str("dir", c.cfg.Paths.OutputDir).Msg("no detection matrices found")
				}
				return err
			}

			for _, name := range args {
				path := filepath.Join(c.cfg.Paths.OutputDir, experiment.ChartFileName(filepath.Base(name)))
				if err := writeChart(cmd, svc, path, filepath.Base(name)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&z, "z", 0, "Critical value for the interval bars (QI_CHART_Z)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Image resolution (QI_CHART_DPI)")
	cmd.Flags().IntVar(&trials, "trials", 0, "Trials per configuration; overrides the file name (QI_CHART_TRIALS)")

	return cmd
}

func (c *cli) newIntervalCmd() *cobra.Command {
	var z float64

	cmd := &cobra.Command{
		Use:   "interval [matrix-file]",
		Short: "Print detection rates and Wilson intervals for one matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("z") {
				z = c.cfg.Chart.Z
			}
			matrices, err := c.openMatrices()
			if err != nil {
				return err
			}
			cells, err := c.reportService(matrices).Intervals(cmd.Context(), filepath.Base(args[0]), z)
			if err != nil {
				return err
			}
			writeIntervals(cmd.OutOrStdout(), cells)
			return nil
		},
	}

	cmd.Flags().Float64Var(&z, "z", 0, "Critical value (QI_CHART_Z)")
	return cmd
}

func (c *cli) newAggregateCmd() *cobra.Command {
	var confidence float64

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Summarise detection rates per configuration across all stored repetitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			matrices, err := c.openMatrices()
			if err != nil {
				return err
			}
			aggregates, err := c.reportService(matrices).Aggregate(cmd.Context(), confidence)
			if err != nil {
				return err
			}
			writeAggregates(cmd.OutOrStdout(), aggregates, confidence)
			return nil
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "Confidence level for the mean rate interval")
	return cmd
}

func (c *cli) newExportCmd() *cobra.Command {
	var z float64

	cmd := &cobra.Command{
		Use:   "export [workbook.xlsx]",
		Short: "Export every stored matrix and its intervals to an Excel workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("z") {
				z = c.cfg.Chart.Z
			}
			path := filepath.Join(c.cfg.Paths.OutputDir, "detections.xlsx")
			if len(args) == 1 {
				path = args[0]
			}

			matrices, err := c.openMatrices()
			if err != nil {
				return err
			}
			if err := c.reportService(matrices).ExportWorkbook(cmd.Context(), path, z); err != nil {
				return err
			}

			sheets, err := excel.SheetNames(path)
			if err != nil {
				return err
			}
			c.logger.Info().Str("path", path).Strs("sheets", sheets).Msg("workbook exported")
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().Float64Var(&z, "z", 0, "Critical value (QI_CHART_Z)")
	return cmd
}

func writeChart(cmd *cobra.Command, svc *app.ReportService, path, name string) (err error) {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return svc.RenderChart(cmd.Context(), f, name, svc.ChartOptions())
}

func writeIntervals(w io.Writer, cells []app.CellInterval) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"m", "d", "detections", "trials", "rate", "lower", "upper"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, cell := range cells {
		table.Append([]string{
			strconv.Itoa(cell.Config.DataQubits),
			strconv.Itoa(cell.Config.SignatureQubits),
			strconv.Itoa(cell.Detections),
			strconv.Itoa(cell.Trials),
			strconv.FormatFloat(cell.Rate, 'f', 4, 64),
			strconv.FormatFloat(cell.Interval.Lower, 'f', 4, 64),
			strconv.FormatFloat(cell.Interval.Upper, 'f', 4, 64),
		})
	}
	table.Render()
}

func writeAggregates(w io.Writer, aggregates []app.ConfigAggregate, confidence float64) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"m", "d", "repetitions", "mean", "std dev", "median",
		fmt.Sprintf("%.0f%% lower", confidence*100), fmt.Sprintf("%.0f%% upper", confidence*100)})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, a := range aggregates {
		table.Append([]string{
			strconv.Itoa(a.Config.DataQubits),
			strconv.Itoa(a.Config.SignatureQubits),
			strconv.Itoa(a.Count),
			strconv.FormatFloat(a.Mean, 'f', 4, 64),
			strconv.FormatFloat(a.StdDev, 'f', 4, 64),
			strconv.FormatFloat(a.Median, 'f', 4, 64),
			strconv.FormatFloat(a.MeanCI.Lower, 'f', 4, 64),
			strconv.FormatFloat(a.MeanCI.Upper, 'f', 4, 64),
		})
	}
	table.Render()
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
