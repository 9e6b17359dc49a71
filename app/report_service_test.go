package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/internal/testkit"
	"qintegrity/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChart struct {
	opts []ports.ChartOptions
}

func (c *recordingChart) Render(ctx context.Context, w io.Writer, matrix *experiment.DetectionMatrix, opts ports.ChartOptions) error {
	c.opts = append(c.opts, opts)
	_, err := io.WriteString(w, "png")
	return err
}

type recordingWorkbook struct {
	path   string
	sheets []ports.WorkbookSheet
}

func (w *recordingWorkbook) WriteWorkbook(ctx context.Context, path string, sheets []ports.WorkbookSheet, z float64) error {
	w.path = path
	w.sheets = sheets
	return nil
}

func storeMatrix(t *testing.T, repo ports.MatrixRepository, rep, trials int, counts map[experiment.QubitConfig]int) string {
	t.Helper()
	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	for cfg, n := range counts {
		require.NoError(t, m.Set(cfg, n))
	}
	name := experiment.MatrixFileName(rep, trials)
	require.NoError(t, repo.Save(context.Background(), name, m))
	return name
}

var (
	m1d1 = experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}
	m2d1 = experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1}
	m1d2 = experiment.QubitConfig{DataQubits: 1, SignatureQubits: 2}
)

func TestReportIntervals(t *testing.T) {
	kit := testkit.NewTestKit()
	name := storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40, m2d1: 30, m1d2: 45})

	svc := NewReportService(kit.MatrixRepository(), nil, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	cells, err := svc.Intervals(context.Background(), name, 1.96)
	require.NoError(t, err)
	require.Len(t, cells, 3)

	assert.Equal(t, m1d1, cells[0].Config)
	assert.Equal(t, 40, cells[0].Detections)
	assert.Equal(t, 50, cells[0].Trials)
	assert.InDelta(t, 0.8, cells[0].Rate, 1e-12)
	assert.InDelta(t, 0.6696, cells[0].Interval.Lower, 1e-3)
	assert.InDelta(t, 0.8876, cells[0].Interval.Upper, 1e-3)

	_, err = svc.Intervals(context.Background(), experiment.MatrixFileName(9, 50), 1.96)
	assert.True(t, core.IsNotFoundError(err))
}

func TestReportChartTrialsFromFileName(t *testing.T) {
	kit := testkit.NewTestKit()
	name := storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40})
	chart := &recordingChart{}
	svc := NewReportService(kit.MatrixRepository(), chart, nil, t.TempDir(), ports.ChartOptions{DPI: 72}, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, svc.RenderChart(context.Background(), &buf, name, ports.ChartOptions{}))
	require.NoError(t, svc.RenderChart(context.Background(), &buf, name, ports.ChartOptions{NumTrials: 100}))

	require.Len(t, chart.opts, 2)
	assert.Equal(t, 50, chart.opts[0].NumTrials)
	assert.Equal(t, 1.96, chart.opts[0].Z)
	assert.Equal(t, 100, chart.opts[1].NumTrials)
}

func TestReportRejectsTrialsBelowDetections(t *testing.T) {
	kit := testkit.NewTestKit()
	name := storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40, m2d1: 12})
	chart := &recordingChart{}

	svc := NewReportService(kit.MatrixRepository(), chart, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	var buf bytes.Buffer
	err := svc.RenderChart(context.Background(), &buf, name, ports.ChartOptions{NumTrials: 30})
	assert.ErrorIs(t, err, core.ErrTrialsTooFew)
	assert.True(t, core.IsValidationError(err))
	assert.Empty(t, chart.opts)

	require.NoError(t, svc.RenderChart(context.Background(), &buf, name, ports.ChartOptions{NumTrials: 40}))

	overridden := NewReportService(kit.MatrixRepository(), nil, nil, t.TempDir(), ports.ChartOptions{NumTrials: 10}, zerolog.Nop())
	_, err = overridden.Intervals(context.Background(), name, 1.96)
	assert.ErrorIs(t, err, core.ErrTrialsTooFew)
}

func TestReportRenderAll(t *testing.T) {
	kit := testkit.NewTestKit()
	storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40})
	storeMatrix(t, kit.MatrixRepository(), 1, 50, map[experiment.QubitConfig]int{m1d1: 42})

	dir := filepath.Join(t.TempDir(), "charts")
	svc := NewReportService(kit.MatrixRepository(), &recordingChart{}, nil, dir, ports.ChartOptions{}, zerolog.Nop())
	written, err := svc.RenderAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "num_detections_array_0_for_50_num_trials.png"),
		filepath.Join(dir, "num_detections_array_1_for_50_num_trials.png"),
	}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestReportAggregate(t *testing.T) {
	kit := testkit.NewTestKit()
	storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40, m2d1: 30, m1d2: 45})
	storeMatrix(t, kit.MatrixRepository(), 1, 50, map[experiment.QubitConfig]int{m1d1: 30, m2d1: 30, m1d2: 50})

	svc := NewReportService(kit.MatrixRepository(), nil, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	aggs, err := svc.Aggregate(context.Background(), 0.95)
	require.NoError(t, err)
	require.Len(t, aggs, 3)

	// signature-major order
	assert.Equal(t, m1d1, aggs[0].Config)
	assert.Equal(t, m2d1, aggs[1].Config)
	assert.Equal(t, m1d2, aggs[2].Config)

	assert.Equal(t, 2, aggs[0].Count)
	assert.InDelta(t, 0.7, aggs[0].Mean, 1e-12)
	assert.InDelta(t, 0.6, aggs[0].Min, 1e-12)
	assert.InDelta(t, 0.8, aggs[0].Max, 1e-12)
	assert.InDelta(t, 0.0, aggs[1].StdDev, 1e-12)
	assert.LessOrEqual(t, aggs[2].MeanCI.Upper, 1.0)
}

func TestReportAggregateEmpty(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := NewReportService(kit.MatrixRepository(), nil, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	_, err := svc.Aggregate(context.Background(), 0.95)
	assert.Error(t, err)
}

func TestReportExportWorkbook(t *testing.T) {
	kit := testkit.NewTestKit()
	storeMatrix(t, kit.MatrixRepository(), 0, 50, map[experiment.QubitConfig]int{m1d1: 40, m2d1: 30, m1d2: 45})
	storeMatrix(t, kit.MatrixRepository(), 1, 50, map[experiment.QubitConfig]int{m1d1: 30, m2d1: 30, m1d2: 50})

	wb := &recordingWorkbook{}
	svc := NewReportService(kit.MatrixRepository(), nil, wb, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	require.NoError(t, svc.ExportWorkbook(context.Background(), "out.xlsx", 0))

	assert.Equal(t, "out.xlsx", wb.path)
	require.Len(t, wb.sheets, 2)
	assert.Equal(t, "rep_0", wb.sheets[0].Name)
	assert.Equal(t, "rep_1", wb.sheets[1].Name)
	require.Len(t, wb.sheets[1].Result.Summaries, 3)
	assert.Equal(t, 1, wb.sheets[1].Result.Repetition)
	assert.Equal(t, 1.0, wb.sheets[1].Result.Summaries[1].Interval.Upper)
}
