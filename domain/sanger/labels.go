package sanger

import "strings"

// DefaultGroup is assigned to samples whose group label is blank
const DefaultGroup = "default"

// NormalizeGroup trims a raw group label, falling back to DefaultGroup
func NormalizeGroup(raw string) string {
	if g := strings.TrimSpace(raw); g != "" {
		return g
	}
	return DefaultGroup
}

// Resolve derives the group and replicate number of every sample. Replicates
// count samples of the same group in upload order starting at 1, so the input
// order must be the upload order and must not be re-sorted. Both the request
// path and the display/export path call this function.
func Resolve(samples []SampleMetadata) []ResolvedLabel {
	labels := make([]ResolvedLabel, len(samples))
	counts := make(map[string]int)
	for i, s := range samples {
		group := NormalizeGroup(s.RawGroupLabel)
		counts[group]++
		labels[i] = ResolvedLabel{Group: group, Replicate: counts[group]}
	}
	return labels
}

// ResolveGroups is Resolve over bare raw labels
func ResolveGroups(rawGroups []string) []ResolvedLabel {
	samples := make([]SampleMetadata, len(rawGroups))
	for i, g := range rawGroups {
		samples[i] = SampleMetadata{RawGroupLabel: g}
	}
	return Resolve(samples)
}

// Groups returns the group column of labels
func Groups(labels []ResolvedLabel) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.Group
	}
	return out
}

// Replicates returns the replicate column of labels
func Replicates(labels []ResolvedLabel) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = l.Replicate
	}
	return out
}
