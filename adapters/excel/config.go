package excel

// ExportConfig holds layout options for exported result files
type ExportConfig struct {
	ResultsSheet string `json:"results_sheet"`
	GroupsSheet  string `json:"groups_sheet"`
	Decimals     int    `json:"decimals"`
	BaseName     string `json:"base_name"`
}

// DefaultExportConfig returns the layout used by the web service
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		ResultsSheet: "Results",
		GroupsSheet:  "Groups",
		Decimals:     2,
		BaseName:     "sanger_results",
	}
}
