// Package sanger holds the domain model of a Sanger editing analysis run:
// uploaded traces, their group/replicate labels, the job request sent to the
// analysis engine and the per-sample records it returns.
package sanger

import (
	"math"
)

// UploadedFile is a raw trace payload as received from the caller
type UploadedFile struct {
	Name    string
	Content []byte
}

// StagedFile records where an uploaded file was written for the engine
type StagedFile struct {
	OriginalName string `json:"originalName"`
	StoragePath  string `json:"storagePath"`
}

// SampleMetadata is the caller's description of one upload, in upload order
type SampleMetadata struct {
	FileName      string `json:"fileName"`
	RawGroupLabel string `json:"group"`
}

// ResolvedLabel is the normalized group and 1-based replicate of a sample
type ResolvedLabel struct {
	Group     string `json:"group"`
	Replicate int    `json:"replicate"`
}

// JobRequest is the document handed to the analysis engine. Groups and
// Replicates are aligned positionally with StagedFiles.
type JobRequest struct {
	StagedFiles   []StagedFile
	GuideSequence string
	Groups        []string
	Replicates    []int

	// WorkDir is the run's scratch directory. It is never sent to the engine.
	WorkDir string
}

// ResultRecord is one engine output entry
type ResultRecord struct {
	File      string   `json:"File"`
	Group     string   `json:"Group"`
	Replicate int      `json:"Replicate"`
	MeanEdit  *float64 `json:"Mean_edit"`
	Error     string   `json:"Error,omitempty"`
}

// Value returns the editing percentage when the record is usable for
// aggregation: no engine error and a finite numeric value.
func (r ResultRecord) Value() (float64, bool) {
	if r.Error != "" || r.MeanEdit == nil {
		return 0, false
	}
	v := *r.MeanEdit
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Failed reports a per-sample failure on the engine side
func (r ResultRecord) Failed() bool {
	_, ok := r.Value()
	return !ok
}

// FailureReason describes why a record is excluded from aggregation
func (r ResultRecord) FailureReason() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.MeanEdit == nil:
		return "no numeric editing value"
	case r.Failed():
		return "non-finite editing value"
	default:
		return ""
	}
}
