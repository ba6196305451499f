package analysis

import (
	"testing"

	"rbpscan/domain/sanger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsFollowUploadOrder(t *testing.T) {
	samples := samplesOf("wt_1.ab1", "WT", "ko_1.ab1", "KO", "wt_2.ab1", "WT", "lost.ab1", "")
	records := decode(t, `[
		{"File":"wt_2.ab1","Group":"WT","Replicate":2,"Mean_edit":7.5},
		{"File":"ko_1.ab1","Group":"KO","Replicate":1,"Error":"no peaks"},
		{"File":"wt_1.ab1","Group":"WT","Replicate":1,"Mean_edit":12}
	]`)

	a := NewAnalysis(samples, sanger.Resolve(samples), nil, records)
	rows := a.Rows()
	require.Len(t, rows, 4)

	assert.Equal(t, "wt_1.ab1", rows[0].File)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, 12.0, *rows[0].Value)

	assert.Equal(t, "KO", rows[1].Group)
	assert.Nil(t, rows[1].Value)
	assert.Equal(t, "no peaks", rows[1].Error)

	assert.Equal(t, 2, rows[2].Replicate)

	assert.Equal(t, sanger.DefaultGroup, rows[3].Group)
	assert.Equal(t, 1, rows[3].Replicate)
	assert.Equal(t, missingResult, rows[3].Error)

	assert.Len(t, a.Records(), 3)
}

func TestExportData(t *testing.T) {
	samples := samplesOf("a", "A", "b", "B")
	records := decode(t, `[{"File":"a","Group":"A","Replicate":1,"Mean_edit":3.14159},{"File":"b","Group":"B","Replicate":1}]`)

	data := NewAnalysis(samples, sanger.Resolve(samples), nil, records).ExportData()
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "a", data.Rows[0].File)
	assert.InDelta(t, 3.14159, *data.Rows[0].Value, 1e-9)
	assert.Nil(t, data.Rows[1].Value)

	require.Len(t, data.Groups, 2)
	assert.Equal(t, 1, data.Groups[0].Count)
	assert.Nil(t, data.Groups[1].Mean)
}
