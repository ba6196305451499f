package analysis

import (
	"math"
	"strings"

	"rbpscan/domain/sanger"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// UnknownGroup labels records that match no sample and carry no group
const UnknownGroup = "Unknown"

// SamplePoint is one included editing value of a group
type SamplePoint struct {
	File      string  `json:"file"`
	Replicate int     `json:"replicate"`
	Value     float64 `json:"value"`
}

// GroupAggregate summarizes the included values of one group. Groups with
// no included value are kept with Count 0 and no statistics.
type GroupAggregate struct {
	Group   string        `json:"group"`
	Total   float64       `json:"total"`
	Count   int           `json:"count"`
	Samples []SamplePoint `json:"samples"`

	// Mean is nil for a group with no included value
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"sd,omitempty"`
	SEM    *float64 `json:"sem,omitempty"`
	CI95   *float64 `json:"ci95,omitempty"`
}

// Analysis joins one run's engine records to its uploaded samples. Matching
// is done once; every derived view reads from the same join.
type Analysis struct {
	samples []sanger.SampleMetadata
	labels  []sanger.ResolvedLabel
	records []sanger.ResultRecord
	// matches[i] is the sample index of records[i], or -1
	matches []int
	// bySample[j] is the record index of samples[j], or -1
	bySample []int
	// duplicate[i] marks an unmatched record naming an already claimed sample
	duplicate []bool
}

// NewAnalysis matches records to samples by label first, then by file name.
// staged may be nil.
func NewAnalysis(samples []sanger.SampleMetadata, labels []sanger.ResolvedLabel, staged []sanger.StagedFile, records []sanger.ResultRecord) *Analysis {
	a := &Analysis{
		samples:   samples,
		labels:    labels,
		records:   records,
		matches:   make([]int, len(records)),
		bySample:  make([]int, len(samples)),
		duplicate: make([]bool, len(records)),
	}
	for j := range a.bySample {
		a.bySample[j] = -1
	}
	m := sanger.NewMatcher(samples, labels, staged)
	for i, rec := range records {
		j := m.Claim(rec)
		a.matches[i] = j
		if j >= 0 {
			a.bySample[j] = i
		} else {
			a.duplicate[i] = m.Known(rec)
		}
	}
	return a
}

// Aggregate groups records without staged-path matching
func Aggregate(records []sanger.ResultRecord, samples []sanger.SampleMetadata, labels []sanger.ResolvedLabel) []GroupAggregate {
	return NewAnalysis(samples, labels, nil, records).Aggregate()
}

// Records returns the decoded engine records unchanged
func (a *Analysis) Records() []sanger.ResultRecord {
	return a.records
}

// recordIdentity returns the group, file and replicate a record is counted under
func (a *Analysis) recordIdentity(i int) (group, file string, replicate int) {
	rec := a.records[i]
	if j := a.matches[i]; j >= 0 && j < len(a.labels) {
		return a.labels[j].Group, a.samples[j].FileName, a.labels[j].Replicate
	}
	group = strings.TrimSpace(rec.Group)
	if group == "" {
		group = UnknownGroup
	}
	return group, rec.File, rec.Replicate
}

// Aggregate builds per-group totals in first-seen order: the upload order of
// labels, then groups that only appear in engine output. Repeated records for
// a sample are left out so a group never counts more values than samples.
func (a *Analysis) Aggregate() []GroupAggregate {
	type accumulator struct {
		values []float64
		points []SamplePoint
	}
	var order []string
	accs := make(map[string]*accumulator)
	touch := func(group string) *accumulator {
		if acc, ok := accs[group]; ok {
			return acc
		}
		acc := &accumulator{}
		accs[group] = acc
		order = append(order, group)
		return acc
	}

	for _, l := range a.labels {
		touch(l.Group)
	}
	for i, rec := range a.records {
		if a.duplicate[i] {
			continue
		}
		group, file, replicate := a.recordIdentity(i)
		acc := touch(group)
		v, ok := rec.Value()
		if !ok {
			continue
		}
		acc.values = append(acc.values, v)
		acc.points = append(acc.points, SamplePoint{File: file, Replicate: replicate, Value: v})
	}

	out := make([]GroupAggregate, len(order))
	for i, group := range order {
		out[i] = summarize(group, accs[group].values, accs[group].points)
	}
	return out
}

func summarize(group string, values []float64, points []SamplePoint) GroupAggregate {
	g := GroupAggregate{Group: group, Count: len(values), Samples: points}
	if g.Samples == nil {
		g.Samples = []SamplePoint{}
	}
	if len(values) == 0 {
		return g
	}

	g.Total, _ = stats.Sum(values)
	mean := g.Total / float64(g.Count)
	g.Mean = &mean
	if len(values) < 2 {
		return g
	}

	sd, err := stats.StandardDeviationSample(values)
	if err != nil || math.IsNaN(sd) {
		return g
	}
	sem := sd / math.Sqrt(float64(len(values)))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(len(values) - 1)}
	ci := t.Quantile(0.975) * sem
	g.StdDev, g.SEM, g.CI95 = &sd, &sem, &ci
	return g
}
