package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/ports"

	"github.com/rs/zerolog"
)

// CellInterval is a populated matrix cell with its detection interval
type CellInterval struct {
	Config     experiment.QubitConfig `json:"config"`
	Detections int                    `json:"detections"`
	Trials     int                    `json:"trials"`
	Rate       float64                `json:"rate"`
	Interval   stats.Interval         `json:"interval"`
}

// ConfigAggregate summarises one configuration across stored repetitions
type ConfigAggregate struct {
	Config experiment.QubitConfig `json:"config"`
	stats.RateSummary
}

// ReportService is the post-hoc analysis pass over persisted matrices
type ReportService struct {
	matrices  ports.MatrixRepository
	charts    ports.ChartRenderer
	workbooks ports.ReportWriter
	outputDir string
	chartOpts ports.ChartOptions
	logger    zerolog.Logger
}

// NewReportService creates a report service. charts and workbooks may be nil
// when the caller only needs intervals or aggregates.
func NewReportService(matrices ports.MatrixRepository, charts ports.ChartRenderer, workbooks ports.ReportWriter, outputDir string, chartOpts ports.ChartOptions, logger zerolog.Logger) *ReportService {
	if chartOpts.Z == 0 {
		chartOpts.Z = stats.DefaultChartZ
	}
	return &ReportService{
		matrices:  matrices,
		charts:    charts,
		workbooks: workbooks,
		outputDir: outputDir,
		chartOpts: chartOpts,
		logger:    logger,
	}
}

// ListMatrices returns the stored matrix names
func (s *ReportService) ListMatrices(ctx context.Context) ([]string, error) {
	return s.matrices.List(ctx)
}

// ChartOptions returns the configured chart defaults
func (s *ReportService) ChartOptions() ports.ChartOptions {
	return s.chartOpts
}

// RenderChart draws the named matrix to w. A zero NumTrials in opts is taken
// from the matrix file name.
func (s *ReportService) RenderChart(ctx context.Context, w io.Writer, name string, opts ports.ChartOptions) error {
	if s.charts == nil {
		return fmt.Errorf("no chart renderer configured")
	}
	matrix, trials, err := s.load(ctx, name)
	if err != nil {
		return err
	}
	if opts.NumTrials == 0 {
		opts.NumTrials = trials
	}
	if err := checkTrials(matrix, opts.NumTrials); err != nil {
		return err
	}
	if opts.Z == 0 {
		opts.Z = s.chartOpts.Z
	}
	return s.charts.Render(ctx, w, matrix, opts)
}

// RenderAll writes one chart image per stored matrix into the output directory
func (s *ReportService) RenderAll(ctx context.Context) ([]string, error) {
	names, err := s.matrices.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string
	for _, name := range names {
		path := filepath.Join(s.outputDir, experiment.ChartFileName(name))
		if err := s.renderFile(ctx, path, name); err != nil {
			return written, err
		}
		s.logger.Info().Str("matrix", name).Str("chart", path).Msg("chart written")
		written = append(written, path)
	}
	return written, nil
}

func (s *ReportService) renderFile(ctx context.Context, path, name string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return s.RenderChart(ctx, f, name, s.chartOpts)
}

// Intervals returns the Wilson interval of every populated cell of a stored matrix
func (s *ReportService) Intervals(ctx context.Context, name string, z float64) ([]CellInterval, error) {
	matrix, trials, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if z <= 0 {
		z = s.chartOpts.Z
	}
	if s.chartOpts.NumTrials > 0 {
		trials = s.chartOpts.NumTrials
	}
	if err := checkTrials(matrix, trials); err != nil {
		return nil, err
	}
	return cellIntervals(matrix, trials, z), nil
}

// checkTrials rejects a trial count smaller than some cell's detections
func checkTrials(matrix *experiment.DetectionMatrix, trials int) error {
	most := 0.0
	for _, cell := range matrix.Cells() {
		most = math.Max(most, cell.Detections)
	}
	if float64(trials) < most {
		return fmt.Errorf("%w: %d trials, a cell has %.0f detections", core.ErrTrialsTooFew, trials, most)
	}
	return nil
}

func cellIntervals(matrix *experiment.DetectionMatrix, trials int, z float64) []CellInterval {
	cells := matrix.Cells()
	out := make([]CellInterval, 0, len(cells))
	for _, cell := range cells {
		detections := int(cell.Detections)
		ci := CellInterval{
			Config:     cell.Config,
			Detections: detections,
			Trials:     trials,
			Interval:   stats.Wilson(detections, trials, z),
		}
		if trials > 0 {
			ci.Rate = float64(detections) / float64(trials)
		}
		out = append(out, ci)
	}
	return out
}

// Aggregate summarises detection rates per configuration across every stored matrix
func (s *ReportService) Aggregate(ctx context.Context, confidenceLevel float64) ([]ConfigAggregate, error) {
	names, err := s.matrices.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no stored matrices to aggregate")
	}

	rates := make(map[experiment.QubitConfig][]float64)
	for _, name := range names {
		matrix, trials, err := s.load(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, cell := range cellIntervals(matrix, trials, s.chartOpts.Z) {
			rates[cell.Config] = append(rates[cell.Config], cell.Rate)
		}
	}

	out := make([]ConfigAggregate, 0, len(rates))
	for cfg, values := range rates {
		summary, err := stats.SummarizeRates(values, confidenceLevel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
		out = append(out, ConfigAggregate{Config: cfg, RateSummary: summary})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Config, out[j].Config
		if a.SignatureQubits != b.SignatureQubits {
			return a.SignatureQubits < b.SignatureQubits
		}
		return a.DataQubits < b.DataQubits
	})
	return out, nil
}

// ExportWorkbook writes every stored matrix and its intervals to one workbook
func (s *ReportService) ExportWorkbook(ctx context.Context, path string, z float64) error {
	if s.workbooks == nil {
		return fmt.Errorf("no workbook writer configured")
	}
	if z <= 0 {
		z = s.chartOpts.Z
	}
	names, err := s.matrices.List(ctx)
	if err != nil {
		return err
	}

	sheets := make([]ports.WorkbookSheet, 0, len(names))
	for _, name := range names {
		matrix, trials, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		rep, _, _ := experiment.ParseMatrixFileName(name)
		result := &experiment.SweepResult{Repetition: rep, NumTrials: trials, Matrix: matrix}
		for _, ci := range cellIntervals(matrix, trials, z) {
			result.Summaries = append(result.Summaries, experiment.ConfigSummary{
				Config:     ci.Config,
				Detections: ci.Detections,
				Trials:     ci.Trials,
				Interval:   ci.Interval,
			})
		}
		sheets = append(sheets, ports.WorkbookSheet{Name: fmt.Sprintf("rep_%d", rep), Result: result})
	}
	return s.workbooks.WriteWorkbook(ctx, path, sheets, z)
}

// load fetches a matrix and the trial count encoded in its name
func (s *ReportService) load(ctx context.Context, name string) (*experiment.DetectionMatrix, int, error) {
	_, trials, err := experiment.ParseMatrixFileName(name)
	if err != nil {
		return nil, 0, err
	}
	matrix, err := s.matrices.Load(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	return matrix, trials, nil
}
