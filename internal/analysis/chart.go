package analysis

import (
	"math"

	"github.com/montanaflynn/stats"
)

const (
	chartHeadroom = 10
	chartCeiling  = 100
)

// ChartPoint is one scatter point: a sample value plotted over its group
type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// ChartDataset is the bar and scatter view of an aggregate
type ChartDataset struct {
	Labels   []string     `json:"labels"`
	Means    []float64    `json:"means"`
	Points   []ChartPoint `json:"points"`
	ChartMax float64      `json:"chartMax"`
}

// BuildChart derives the chart from aggregates. Groups without included
// values are left out of the bar series.
func BuildChart(groups []GroupAggregate) ChartDataset {
	chart := ChartDataset{
		Labels: []string{},
		Means:  []float64{},
		Points: []ChartPoint{},
	}
	var all []float64
	for _, g := range groups {
		if g.Count == 0 || g.Mean == nil {
			continue
		}
		chart.Labels = append(chart.Labels, g.Group)
		chart.Means = append(chart.Means, *g.Mean)
		for _, s := range g.Samples {
			chart.Points = append(chart.Points, ChartPoint{X: g.Group, Y: s.Value})
			all = append(all, s.Value)
		}
	}
	chart.ChartMax = ChartMax(all)
	return chart
}

// ChartMax is the y-axis bound: 10 points above the largest value, capped
// at 100. With no values (or only values at or below zero) it is 10.
func ChartMax(values []float64) float64 {
	top := 0.0
	if m, err := stats.Max(values); err == nil && m > top {
		top = m
	}
	return math.Min(chartCeiling, math.Ceil(top+chartHeadroom))
}
