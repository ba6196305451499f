package sanger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSamples() ([]SampleMetadata, []ResolvedLabel, []StagedFile) {
	samples := []SampleMetadata{
		{FileName: "wt_1.ab1", RawGroupLabel: "WT"},
		{FileName: "ko_1.ab1", RawGroupLabel: "KO"},
		{FileName: "wt_2.ab1", RawGroupLabel: "WT"},
	}
	staged := []StagedFile{
		{OriginalName: "wt_1.ab1", StoragePath: "/scratch/r1/000_wt_1.ab1"},
		{OriginalName: "ko_1.ab1", StoragePath: "/scratch/r1/001_ko_1.ab1"},
		{OriginalName: "wt_2.ab1", StoragePath: "/scratch/r1/002_wt_2.ab1"},
	}
	return samples, Resolve(samples), staged
}

func TestMatchRecordsOutOfOrder(t *testing.T) {
	samples, labels, staged := testSamples()
	records := []ResultRecord{
		{File: "x", Group: "WT", Replicate: 2},
		{File: "y", Group: "KO", Replicate: 1},
		{File: "z", Group: "WT", Replicate: 1},
	}

	assert.Equal(t, []int{2, 1, 0}, MatchRecords(records, samples, labels, staged))
}

func TestMatchRecordsFallsBackToFile(t *testing.T) {
	samples, labels, staged := testSamples()
	records := []ResultRecord{
		{File: "/scratch/r1/002_wt_2.ab1", Group: "?", Replicate: 9},
		{File: "001_ko_1.ab1"},
		{File: "wt_1.ab1"},
	}

	assert.Equal(t, []int{2, 1, 0}, MatchRecords(records, samples, labels, staged))
}

func TestMatchRecordsClaimsOnce(t *testing.T) {
	samples, labels, staged := testSamples()
	records := []ResultRecord{
		{File: "a", Group: "WT", Replicate: 1},
		{File: "b", Group: "WT", Replicate: 1},
		{File: "unknown.ab1", Group: "Other", Replicate: 1},
	}

	assert.Equal(t, []int{0, -1, -1}, MatchRecords(records, samples, labels, staged))
}

func TestMatchRecordsBlankGroupMatchesDefault(t *testing.T) {
	samples := []SampleMetadata{{FileName: "s1.ab1", RawGroupLabel: "  "}}
	records := []ResultRecord{{File: "other", Group: "", Replicate: 1}}

	assert.Equal(t, []int{0}, MatchRecords(records, samples, Resolve(samples), nil))
}

func TestMatchRecordsSameFileName(t *testing.T) {
	samples := []SampleMetadata{
		{FileName: "sample.ab1", RawGroupLabel: "A"},
		{FileName: "sample.ab1", RawGroupLabel: "B"},
	}
	records := []ResultRecord{
		{File: "sample.ab1", Group: "?", Replicate: 1},
		{File: "sample.ab1", Group: "?", Replicate: 1},
		{File: "sample.ab1", Group: "?", Replicate: 1},
	}

	assert.Equal(t, []int{0, 1, -1}, MatchRecords(records, samples, Resolve(samples), nil))
}

func TestMatcherKnown(t *testing.T) {
	samples, labels, staged := testSamples()
	m := NewMatcher(samples, labels, staged)

	first := ResultRecord{File: "x", Group: "KO", Replicate: 1}
	assert.Equal(t, 1, m.Claim(first))
	assert.Equal(t, -1, m.Claim(first))
	assert.True(t, m.Known(first))
	assert.True(t, m.Known(ResultRecord{File: "/elsewhere/002_wt_2.ab1", Group: "?"}))
	assert.False(t, m.Known(ResultRecord{File: "other.ab1", Group: "KO", Replicate: 3}))
}
