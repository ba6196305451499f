package analysis

import (
	"rbpscan/ports"
)

// SampleRow is the per-sample view of a run, in upload order. Group and
// replicate come from the resolver, never from the engine.
type SampleRow struct {
	File      string   `json:"file"`
	Group     string   `json:"group"`
	Replicate int      `json:"replicate"`
	Value     *float64 `json:"value"`
	Error     string   `json:"error,omitempty"`
}

const missingResult = "no result returned"

// Rows lists every uploaded sample, including failed ones
func (a *Analysis) Rows() []SampleRow {
	rows := make([]SampleRow, len(a.samples))
	for j, s := range a.samples {
		row := SampleRow{File: s.FileName}
		if j < len(a.labels) {
			row.Group = a.labels[j].Group
			row.Replicate = a.labels[j].Replicate
		}
		i := a.bySample[j]
		switch {
		case i < 0:
			row.Error = missingResult
		default:
			if v, ok := a.records[i].Value(); ok {
				value := v
				row.Value = &value
			} else {
				row.Error = a.records[i].FailureReason()
			}
		}
		rows[j] = row
	}
	return rows
}

// ExportData assembles the tables written by exporters
func (a *Analysis) ExportData() ports.ExportData {
	return BuildExportData(a.Rows(), a.Aggregate())
}

// BuildExportData converts per-sample rows and group aggregates for export
func BuildExportData(rows []SampleRow, groups []GroupAggregate) ports.ExportData {
	data := ports.ExportData{
		Rows:   make([]ports.ExportRow, len(rows)),
		Groups: make([]ports.GroupSummaryRow, len(groups)),
	}
	for i, r := range rows {
		data.Rows[i] = ports.ExportRow{File: r.File, Group: r.Group, Replicate: r.Replicate, Value: r.Value}
	}
	for i, g := range groups {
		data.Groups[i] = ports.GroupSummaryRow{
			Group:  g.Group,
			Count:  g.Count,
			Mean:   g.Mean,
			StdDev: g.StdDev,
			SEM:    g.SEM,
			CI95:   g.CI95,
		}
	}
	return data
}
