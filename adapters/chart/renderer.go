package chart

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	"qintegrity/ports"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	DefaultTitle    = "Effectiveness of Integrity Detection in Encrypted Quantum Data"
	DefaultDPI      = 600
	DefaultBarWidth = 0.5
	DefaultBarDepth = 0.5

	labelData      = "Number of data qubits (m)"
	labelSignature = "Number of authentication qubits (d)"
	labelRate      = "Probability of detection"
)

// Renderer draws detection charts as PNG images
type Renderer struct {
	width, height vg.Length
}

var _ ports.ChartRenderer = (*Renderer)(nil)

// NewRenderer creates a renderer with a 10x8 inch canvas
func NewRenderer() *Renderer {
	return &Renderer{width: 10 * vg.Inch, height: 8 * vg.Inch}
}

// Render computes the Wilson interval of each populated cell and draws the
// stacked bars: [0, lower] in the base colour and [lower, upper] highlighted.
func (r *Renderer) Render(ctx context.Context, w io.Writer, matrix *experiment.DetectionMatrix, opts ports.ChartOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts = withDefaults(opts)
	if opts.NumTrials <= 0 {
		return fmt.Errorf("chart needs a positive trial count, got %d", opts.NumTrials)
	}
	if opts.DPI > ports.MaxChartDPI {
		return fmt.Errorf("%w: chart dpi %d exceeds %d", core.ErrInvalidConfig, opts.DPI, ports.MaxChartDPI)
	}

	p, err := r.build(matrix, opts)
	if err != nil {
		return err
	}

	c := vgimg.NewWith(vgimg.UseWH(r.width, r.height), vgimg.UseDPI(opts.DPI))
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	return nil
}

func withDefaults(opts ports.ChartOptions) ports.ChartOptions {
	if opts.Z <= 0 {
		opts.Z = stats.DefaultChartZ
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = DefaultBarWidth
	}
	if opts.BarDepth <= 0 {
		opts.BarDepth = DefaultBarDepth
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return opts
}

func collectBars(matrix *experiment.DetectionMatrix, numTrials int, z float64) []bar {
	cells := matrix.Cells()
	bars := make([]bar, 0, len(cells))
	for _, cell := range cells {
		lo, hi := stats.WilsonScoreInterval(cell.Detections, float64(numTrials), z)
		bars = append(bars, bar{
			m:     cell.Config.DataQubits,
			d:     cell.Config.SignatureQubits,
			lower: lo,
			upper: hi,
		})
	}
	return bars
}

func (r *Renderer) build(matrix *experiment.DetectionMatrix, opts ports.ChartOptions) (*plot.Plot, error) {
	n, _ := matrix.Dims()
	bars := collectBars(matrix, opts.NumTrials, opts.Z)
	if len(bars) == 0 {
		return nil, fmt.Errorf("matrix has no populated cells")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = font.Points(14)
	p.X.Label.Text = labelData
	p.Y.Label.Text = labelRate
	p.X.Label.TextStyle.Font.Size = font.Points(11)
	p.Y.Label.TextStyle.Font.Size = font.Points(11)

	plotter := &bars3D{
		bars:   bars,
		n:      n,
		width:  opts.BarWidth,
		depth:  opts.BarDepth,
		dStyle: p.X.Tick.Label,
		dTitle: labelSignature,
	}
	p.Add(plotter)

	xmin, xmax, ymin, ymax := plotter.DataRange()
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	xticks := make([]plot.Tick, 0, n)
	for m := 1; m <= n; m++ {
		xticks = append(xticks, plot.Tick{Value: float64(m) + opts.BarWidth/2, Label: strconv.Itoa(m)})
	}
	p.X.Tick.Marker = plot.ConstantTicks(xticks)

	var yticks []plot.Tick
	for i := 0; i <= 10; i++ {
		v := float64(i) / 10
		label := ""
		if i%2 == 0 {
			label = strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
		}
		yticks = append(yticks, plot.Tick{Value: v, Label: label})
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)

	return p, nil
}
