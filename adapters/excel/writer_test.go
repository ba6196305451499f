package excel

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"rbpscan/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ptr(v float64) *float64 { return &v }

func sampleData() ports.ExportData {
	return ports.ExportData{
		Rows: []ports.ExportRow{
			{File: "wt_1.ab1", Group: "WT", Replicate: 1, Value: ptr(12.5)},
			{File: "ko, \"clone 3\".ab1", Group: "KO", Replicate: 1},
			{File: "wt_2.ab1", Group: "WT", Replicate: 2, Value: ptr(7.126)},
		},
		Groups: []ports.GroupSummaryRow{
			{Group: "WT", Count: 2, Mean: ptr(9.8125), StdDev: ptr(3.8), SEM: ptr(2.69), CI95: ptr(34.15)},
			{Group: "KO", Count: 0},
		},
	}
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(DefaultExportConfig())
	require.NoError(t, exporter.Export(&buf, sampleData()))

	expected := "File,Group,Replicate,Editing(%)\n" +
		"wt_1.ab1,WT,1,12.50\n" +
		"\"ko, \"\"clone 3\"\".ab1\",KO,1,\n" +
		"wt_2.ab1,WT,2,7.13\n"
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, "sanger_results.csv", exporter.FileName())
}

func TestCSVExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(DefaultExportConfig()).Export(&buf, ports.ExportData{}))
	assert.Equal(t, "File,Group,Replicate,Editing(%)\n", buf.String())
}

func TestXLSXExport(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewXLSXExporter(DefaultExportConfig())
	require.NoError(t, exporter.Export(&buf, sampleData()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results", "Groups"}, f.GetSheetList())

	rows, err := f.GetRows("Results", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ResultHeaders, rows[0])
	assert.Equal(t, []string{"wt_1.ab1", "WT", "1", "12.5"}, rows[1])
	assert.Equal(t, "ko, \"clone 3\".ab1", rows[2][0])

	formatted, err := f.GetCellValue("Results", "D4")
	require.NoError(t, err)
	assert.Equal(t, "7.13", formatted)

	groups, err := f.GetRows("Groups")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, GroupHeaders, groups[0])
	assert.Equal(t, []string{"KO", "0"}, groups[2])
}

func TestReadExportRowsFromCSVAndXLSX(t *testing.T) {
	dir := t.TempDir()
	data := sampleData()

	for _, exporter := range []ports.Exporter{NewCSVExporter(DefaultExportConfig()), NewXLSXExporter(DefaultExportConfig())} {
		path := filepath.Join(dir, exporter.FileName())
		var buf bytes.Buffer
		require.NoError(t, exporter.Export(&buf, data))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		rows, err := NewDataReader(path).ReadExportRows()
		require.NoError(t, err, exporter.Format())
		require.Len(t, rows, 3)
		assert.Equal(t, "KO", rows[1].Group)
		assert.Nil(t, rows[1].Value)
		require.NotNil(t, rows[0].Value)
		assert.InDelta(t, 12.5, *rows[0].Value, 1e-9)
	}
}

func TestReadExportRowsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("File,Group\na,b\n"), 0o644))

	_, err := NewDataReader(path).ReadExportRows()
	assert.ErrorContains(t, err, "Replicate")
}
