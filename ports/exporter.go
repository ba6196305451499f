package ports

import "io"

// ExportRow is one line of a per-sample export, in upload order
type ExportRow struct {
	File      string
	Group     string
	Replicate int
	Value     *float64
}

// GroupSummaryRow is one line of a per-group export
type GroupSummaryRow struct {
	Group  string
	Count  int
	Mean   *float64
	StdDev *float64
	SEM    *float64
	CI95   *float64
}

// ExportData is everything an exporter may render
type ExportData struct {
	Rows   []ExportRow
	Groups []GroupSummaryRow
}

// Exporter renders an analysis into a downloadable file format
type Exporter interface {
	Format() string
	ContentType() string
	FileName() string
	Export(w io.Writer, data ExportData) error
}
