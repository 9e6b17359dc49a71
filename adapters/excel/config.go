package excel

// WorkbookConfig controls the layout of exported workbooks
type WorkbookConfig struct {
	IntervalsSheet string `json:"intervals_sheet"`
	RateFormat     string `json:"rate_format"`
}

// DefaultWorkbookConfig returns the standard layout
func DefaultWorkbookConfig() WorkbookConfig {
	return WorkbookConfig{
		IntervalsSheet: "Intervals",
		RateFormat:     "0.0000",
	}
}
