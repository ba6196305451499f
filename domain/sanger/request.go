package sanger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrLabelCountMismatch is returned when staged files and labels are not aligned
var ErrLabelCountMismatch = errors.New("staged files and group labels differ in length")

// BuildJobRequest assembles the engine job. The guide sequence is passed
// through verbatim; an empty string means no guide constraint.
func BuildJobRequest(staged []StagedFile, labels []ResolvedLabel, guideSeq string) (JobRequest, error) {
	if len(staged) != len(labels) {
		return JobRequest{}, fmt.Errorf("%w: %d files, %d labels", ErrLabelCountMismatch, len(staged), len(labels))
	}
	files := make([]StagedFile, len(staged))
	copy(files, staged)
	return JobRequest{
		StagedFiles:   files,
		GuideSequence: guideSeq,
		Groups:        Groups(labels),
		Replicates:    Replicates(labels),
	}, nil
}

type wireParsedData struct {
	FileName string `json:"fileName"`
}

type wireJobRequest struct {
	ParsedData []wireParsedData `json:"parsed_data"`
	GuideSeq   string           `json:"guide_seq"`
	Groups     []string         `json:"groups"`
	Replicates []string         `json:"replicates"`
}

// MarshalJSON writes the engine wire form:
// {"parsed_data":[{"fileName":...}],"guide_seq":...,"groups":[...],"replicates":["1",...]}
func (r JobRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire(func(f StagedFile) string { return f.StoragePath }))
}

// WireWithNames renders the request with fileName set by name(f), used when
// the engine does not share the local filesystem.
func (r JobRequest) WireWithNames(name func(StagedFile) string) ([]byte, error) {
	return json.Marshal(r.wire(name))
}

func (r JobRequest) wire(name func(StagedFile) string) wireJobRequest {
	w := wireJobRequest{
		ParsedData: make([]wireParsedData, len(r.StagedFiles)),
		GuideSeq:   r.GuideSequence,
		Groups:     make([]string, len(r.Groups)),
		Replicates: make([]string, len(r.Replicates)),
	}
	for i, f := range r.StagedFiles {
		w.ParsedData[i] = wireParsedData{FileName: name(f)}
	}
	copy(w.Groups, r.Groups)
	for i, rep := range r.Replicates {
		w.Replicates[i] = strconv.Itoa(rep)
	}
	return w
}
