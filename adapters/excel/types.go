package excel

// ResultHeaders are the columns of the per-sample table
var ResultHeaders = []string{"File", "Group", "Replicate", "Editing(%)"}

// GroupHeaders are the columns of the per-group summary table
var GroupHeaders = []string{"Group", "n", "Mean", "SD", "SEM", "CI95"}

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// RawRowData represents a row of a read-back table as header/value pairs
type RawRowData map[string]string

// ExcelData represents a table read from an exported file
type ExcelData struct {
	Headers []string
	Rows    []RawRowData
}
