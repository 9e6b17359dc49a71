package excel

import (
	"context"
	"fmt"
	"math"

	"qintegrity/ports"

	"github.com/xuri/excelize/v2"
)

var intervalHeaders = []string{
	"repetition", "data_qubits", "signature_qubits", "detections", "trials",
	"rate", "lower_bound", "upper_bound", "no_effect_retries",
}

// Writer exports sweep results: one count matrix sheet per repetition plus a
// combined intervals sheet.
type Writer struct {
	config WorkbookConfig
}

var _ ports.ReportWriter = (*Writer)(nil)

// NewWriter creates a workbook writer
func NewWriter(config WorkbookConfig) *Writer {
	return &Writer{config: config}
}

// WriteWorkbook writes the workbook to path
func (w *Writer) WriteWorkbook(ctx context.Context, path string, sheets []ports.WorkbookSheet, z float64) error {
	if len(sheets) == 0 {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	rate, err := f.NewStyle(&excelize.Style{CustomNumFmt: &w.config.RateFormat})
	if err != nil {
		return err
	}

	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}
		if err := w.writeMatrix(f, sheet, header); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
	}

	if _, err := f.NewSheet(w.config.IntervalsSheet); err != nil {
		return err
	}
	if err := w.writeIntervals(f, sheets, z, header, rate); err != nil {
		return fmt.Errorf("sheet %s: %w", w.config.IntervalsSheet, err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeMatrix(f *excelize.File, sheet ports.WorkbookSheet, header int) error {
	matrix := sheet.Result.Matrix
	rows, cols := matrix.Dims()

	if err := f.SetCellValue(sheet.Name, "A1", "m \\ d"); err != nil {
		return err
	}
	for j := 0; j < cols; j++ {
		cell, _ := excelize.CoordinatesToCellName(j+2, 1)
		if err := f.SetCellValue(sheet.Name, cell, j+1); err != nil {
			return err
		}
	}
	for i := 0; i < rows; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(sheet.Name, cell, i+1); err != nil {
			return err
		}
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+2, i+2)
			if err := f.SetCellValue(sheet.Name, cell, int(v)); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.CoordinatesToCellName(cols+1, 1)
	if err := f.SetCellStyle(sheet.Name, "A1", last, header); err != nil {
		return err
	}
	lastRow, _ := excelize.CoordinatesToCellName(1, rows+1)
	return f.SetCellStyle(sheet.Name, "A1", lastRow, header)
}

func (w *Writer) writeIntervals(f *excelize.File, sheets []ports.WorkbookSheet, z float64, header, rate int) error {
	name := w.config.IntervalsSheet
	row := make([]interface{}, len(intervalHeaders))
	for i, h := range intervalHeaders {
		row[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &row); err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(intervalHeaders), 1)
	if err := f.SetCellStyle(name, "A1", lastHeader, header); err != nil {
		return err
	}

	r := 2
	for _, sheet := range sheets {
		for _, s := range sheet.Result.Summaries {
			values := []interface{}{
				sheet.Result.Repetition, s.Config.DataQubits, s.Config.SignatureQubits,
				s.Detections, s.Trials, s.Rate(), s.Interval.Lower, s.Interval.Upper, s.NoEffectRetries,
			}
			start, _ := excelize.CoordinatesToCellName(1, r)
			if err := f.SetSheetRow(name, start, &values); err != nil {
				return err
			}
			r++
		}
	}
	if r > 2 {
		from, _ := excelize.CoordinatesToCellName(6, 2)
		to, _ := excelize.CoordinatesToCellName(8, r-1)
		if err := f.SetCellStyle(name, from, to, rate); err != nil {
			return err
		}
	}

	zCell, _ := excelize.CoordinatesToCellName(len(intervalHeaders)+2, 1)
	if err := f.SetCellValue(name, zCell, "z"); err != nil {
		return err
	}
	zValue, _ := excelize.CoordinatesToCellName(len(intervalHeaders)+3, 1)
	return f.SetCellValue(name, zValue, z)
}
