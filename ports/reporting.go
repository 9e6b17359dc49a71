package ports

import (
	"context"
	"io"

	"qintegrity/domain/experiment"
)

// MaxChartDPI bounds chart resolution; the 10x8 inch canvas is rasterised in memory
const MaxChartDPI = 1200

// ChartOptions controls detection chart rendering
type ChartOptions struct {
	Z         float64
	DPI       int
	BarWidth  float64
	BarDepth  float64
	Title     string
	NumTrials int
}

// ChartRenderer draws a detection matrix with confidence intervals as an image
type ChartRenderer interface {
	Render(ctx context.Context, w io.Writer, matrix *experiment.DetectionMatrix, opts ChartOptions) error
}

// WorkbookSheet is one repetition's results for export
type WorkbookSheet struct {
	Name   string
	Result *experiment.SweepResult
}

// ReportWriter exports sweep results to a spreadsheet
type ReportWriter interface {
	WriteWorkbook(ctx context.Context, path string, sheets []WorkbookSheet, z float64) error
}

// ProgressReporter receives human-facing progress as the sweep runs
type ProgressReporter interface {
	ConfigCompleted(summary experiment.ConfigSummary)
	RepetitionCompleted(result *experiment.SweepResult)
}
