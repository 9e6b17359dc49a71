package excel

// RawRowData represents a row of a sheet as header -> cell text
type RawRowData map[string]string

// SheetData is the content of one worksheet
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
