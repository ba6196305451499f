package sanger

import (
	"path/filepath"
	"strings"
)

type labelKey struct {
	group     string
	replicate int
}

// Matcher joins engine records back to the uploaded samples. Engine output
// order is not guaranteed, so records are matched on (group, replicate) and
// then on file name, never on position.
type Matcher struct {
	byLabel map[labelKey]int
	byFile  map[string][]int
	claimed []bool
}

// NewMatcher indexes samples by their resolved label and by every name the
// engine could echo back: the staged path, its base name, and the original
// upload name. staged may be nil when only the original names are known.
func NewMatcher(samples []SampleMetadata, labels []ResolvedLabel, staged []StagedFile) *Matcher {
	m := &Matcher{
		byLabel: make(map[labelKey]int, len(labels)),
		byFile:  make(map[string][]int, len(samples)*3),
		claimed: make([]bool, len(samples)),
	}
	for i, l := range labels {
		if i >= len(samples) {
			break
		}
		m.byLabel[labelKey{l.Group, l.Replicate}] = i
	}
	addName := func(name string, i int) {
		if name == "" {
			return
		}
		for _, j := range m.byFile[name] {
			if j == i {
				return
			}
		}
		m.byFile[name] = append(m.byFile[name], i)
	}
	for i, s := range samples {
		addName(s.FileName, i)
		addName(filepath.Base(s.FileName), i)
	}
	for i, f := range staged {
		if i >= len(samples) {
			break
		}
		addName(f.StoragePath, i)
		addName(filepath.Base(f.StoragePath), i)
		addName(f.OriginalName, i)
	}
	return m
}

// Claim returns the sample index for rec, or -1 when no unclaimed sample
// matches. Each sample is claimed at most once.
func (m *Matcher) Claim(rec ResultRecord) int {
	if i, ok := m.byLabel[labelKey{NormalizeGroup(rec.Group), rec.Replicate}]; ok && !m.claimed[i] {
		m.claimed[i] = true
		return i
	}
	file := strings.TrimSpace(rec.File)
	for _, name := range []string{file, filepath.Base(file)} {
		for _, i := range m.byFile[name] {
			if !m.claimed[i] {
				m.claimed[i] = true
				return i
			}
		}
	}
	return -1
}

// Known reports whether rec names an uploaded sample by label or by file,
// claimed or not. An unmatched record that is Known duplicates a sample the
// engine already reported.
func (m *Matcher) Known(rec ResultRecord) bool {
	if _, ok := m.byLabel[labelKey{NormalizeGroup(rec.Group), rec.Replicate}]; ok {
		return true
	}
	file := strings.TrimSpace(rec.File)
	for _, name := range []string{file, filepath.Base(file)} {
		if len(m.byFile[name]) > 0 {
			return true
		}
	}
	return false
}

// MatchRecords returns, for every record, the index of its sample or -1.
func MatchRecords(records []ResultRecord, samples []SampleMetadata, labels []ResolvedLabel, staged []StagedFile) []int {
	m := NewMatcher(samples, labels, staged)
	out := make([]int, len(records))
	for i, rec := range records {
		out[i] = m.Claim(rec)
	}
	return out
}
