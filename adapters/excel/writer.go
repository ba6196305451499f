package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"rbpscan/ports"

	"github.com/xuri/excelize/v2"
)

// FormatValue renders an editing percentage with fixed decimals, blank when absent
func FormatValue(v *float64, decimals int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}

// CSVExporter writes the per-sample table as RFC 4180 CSV
type CSVExporter struct {
	config ExportConfig
}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter(config ExportConfig) *CSVExporter {
	return &CSVExporter{config: config}
}

func (e *CSVExporter) Format() string      { return FormatCSV }
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (e *CSVExporter) FileName() string    { return e.config.BaseName + ".csv" }

// Export writes one row per uploaded sample in upload order
func (e *CSVExporter) Export(w io.Writer, data ports.ExportData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeaders); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range data.Rows {
		record := []string{
			row.File,
			row.Group,
			strconv.Itoa(row.Replicate),
			FormatValue(row.Value, e.config.Decimals),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSXExporter writes a workbook with a per-sample sheet and a per-group sheet
type XLSXExporter struct {
	config ExportConfig
}

// NewXLSXExporter creates an XLSX exporter
func NewXLSXExporter(config ExportConfig) *XLSXExporter {
	return &XLSXExporter{config: config}
}

func (e *XLSXExporter) Format() string { return FormatXLSX }
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *XLSXExporter) FileName() string { return e.config.BaseName + ".xlsx" }

func (e *XLSXExporter) Export(w io.Writer, data ports.ExportData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.config.ResultsSheet); err != nil {
		return fmt.Errorf("failed to name results sheet: %w", err)
	}
	if _, err := f.NewSheet(e.config.GroupsSheet); err != nil {
		return fmt.Errorf("failed to create groups sheet: %w", err)
	}

	// NumFmt 2 is the built-in "0.00"
	numStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.writeResults(f, data.Rows, headStyle, numStyle); err != nil {
		return err
	}
	if err := e.writeGroups(f, data.Groups, headStyle, numStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *XLSXExporter) writeResults(f *excelize.File, rows []ports.ExportRow, headStyle, numStyle int) error {
	sheet := e.config.ResultsSheet
	if err := writeHeader(f, sheet, ResultHeaders, headStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cells := []interface{}{row.File, row.Group, row.Replicate, nullable(row.Value)}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", len(rows)+1), numStyle); err != nil {
			return fmt.Errorf("failed to style results: %w", err)
		}
	}
	return f.SetColWidth(sheet, "A", "A", 32)
}

func (e *XLSXExporter) writeGroups(f *excelize.File, groups []ports.GroupSummaryRow, headStyle, numStyle int) error {
	sheet := e.config.GroupsSheet
	if err := writeHeader(f, sheet, GroupHeaders, headStyle); err != nil {
		return err
	}
	for i, g := range groups {
		cells := []interface{}{g.Group, g.Count, nullable(g.Mean), nullable(g.StdDev), nullable(g.SEM), nullable(g.CI95)}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	if len(groups) > 0 {
		if err := f.SetCellStyle(sheet, "C2", fmt.Sprintf("F%d", len(groups)+1), numStyle); err != nil {
			return fmt.Errorf("failed to style groups: %w", err)
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := writeRow(f, sheet, 1, cells); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// nullable leaves the cell empty for missing values
func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
