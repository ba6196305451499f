package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rbpscan/internal"
	"rbpscan/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader reads a previously exported result table back into rows
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ExportConfig
	logger   *internal.Logger
}

// NewDataReader creates a reader; the format follows the file extension
func NewDataReader(filePath string) *DataReader {
	fileType := FormatCSV
	if strings.ToLower(filepath.Ext(filePath)) == ".xlsx" {
		fileType = FormatXLSX
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		config:   DefaultExportConfig(),
		logger:   internal.DefaultLogger,
	}
}

// ReadData reads the per-sample table as header/value rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	var (
		rows [][]string
		err  error
	)
	switch r.fileType {
	case FormatCSV:
		rows, err = r.readCSVRows()
	case FormatXLSX:
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%s file has no header row", strings.ToUpper(r.fileType))
	}
	data := processRows(rows)
	r.logger.Debug("[DataReader] %s read (%d columns, %d rows)", r.filePath, len(data.Headers), len(data.Rows))
	return data, nil
}

// ReadExportRows reads the per-sample table into export rows
func (r *DataReader) ReadExportRows() ([]ports.ExportRow, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	for _, h := range ResultHeaders {
		if !containsHeader(data.Headers, h) {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	out := make([]ports.ExportRow, 0, len(data.Rows))
	for i, row := range data.Rows {
		rep, err := strconv.Atoi(row["Replicate"])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid replicate %q", i+2, row["Replicate"])
		}
		er := ports.ExportRow{File: row["File"], Group: row["Group"], Replicate: rep}
		if raw := row["Editing(%)"]; raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid editing value %q", i+2, raw)
			}
			er.Value = &v
		}
		out = append(out, er)
	}
	return out, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return readCSV(file)
}

func readCSV(src io.Reader) ([][]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.ResultsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", r.config.ResultsSheet, err)
	}
	return rows, nil
}

// processRows converts raw string rows into ExcelData format
func processRows(rows [][]string) *ExcelData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}
	return &ExcelData{Headers: headers, Rows: dataRows}
}

func containsHeader(headers []string, want string) bool {
	for _, h := range headers {
		if h == want {
			return true
		}
	}
	return false
}
