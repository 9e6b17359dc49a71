// Package console prints sweep progress for humans.
package console

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"qintegrity/domain/experiment"
	"qintegrity/ports"

	"github.com/olekukonko/tablewriter"
)

// Reporter writes per-configuration summaries, the final matrix and the
// elapsed time since it was created.
type Reporter struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	now   func() time.Time
}

var _ ports.ProgressReporter = (*Reporter)(nil)

// NewReporter creates a reporter writing to w
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w, start: time.Now(), now: time.Now}
}

// ConfigCompleted prints the detection summary of one configuration
func (r *Reporter) ConfigCompleted(s experiment.ConfigSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "number of data qubits = %d\n", s.Config.DataQubits)
	fmt.Fprintf(r.w, "number of signature qubits = %d\n", s.Config.SignatureQubits)
	fmt.Fprintf(r.w, "Detected %d integrity attacks\n", s.Detections)
	fmt.Fprintf(r.w, "Detected integrity attacks in %s%% of the time\n", formatPercent(100*s.Rate()))
	fmt.Fprintln(r.w)
}

// RepetitionCompleted prints the detection matrix and the time so far
func (r *Reporter) RepetitionCompleted(result *experiment.SweepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	WriteMatrix(r.w, result.Matrix)
	fmt.Fprintf(r.w, "Time to complete: %.3f seconds\n", r.now().Sub(r.start).Seconds())
}

// WriteMatrix renders a detection matrix as a table, rows by data qubits and
// columns by signature qubits.
func WriteMatrix(w io.Writer, matrix *experiment.DetectionMatrix) {
	rows, cols := matrix.Dims()

	header := make([]string, 0, cols+1)
	header = append(header, "m \\ d")
	for j := 1; j <= cols; j++ {
		header = append(header, strconv.Itoa(j))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i := 0; i < rows; i++ {
		row := make([]string, 0, cols+1)
		row = append(row, strconv.Itoa(i+1))
		for j := 0; j < cols; j++ {
			row = append(row, formatCount(matrix.At(i, j)))
		}
		table.Append(row)
	}
	table.Render()
}

func formatCount(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatPercent keeps at least one decimal place, so 80 prints as 80.0
func formatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
