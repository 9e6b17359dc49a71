package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadSheet loads a worksheet, treating the first row as headers
func ReadSheet(path, sheet string) (*SheetData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &SheetData{}, nil
	}

	data := &SheetData{Headers: rows[0]}
	for _, row := range rows[1:] {
		raw := make(RawRowData, len(data.Headers))
		for i, h := range data.Headers {
			if i < len(row) {
				raw[h] = row[i]
			}
		}
		data.Rows = append(data.Rows, raw)
	}
	return data, nil
}

// SheetNames lists the worksheets of a workbook in order
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}
