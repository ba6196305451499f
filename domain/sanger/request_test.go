package sanger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJobRequest(t *testing.T) {
	staged := []StagedFile{
		{OriginalName: "s1.ab1", StoragePath: "/tmp/run/0_s1.ab1"},
		{OriginalName: "s2.ab1", StoragePath: "/tmp/run/1_s2.ab1"},
		{OriginalName: "s3.ab1", StoragePath: "/tmp/run/2_s3.ab1"},
	}
	labels := ResolveGroups([]string{"A", "", "A"})

	req, err := BuildJobRequest(staged, labels, "")
	require.NoError(t, err)

	assert.Equal(t, staged, req.StagedFiles)
	assert.Equal(t, []string{"A", "default", "A"}, req.Groups)
	assert.Equal(t, []int{1, 1, 2}, req.Replicates)
	assert.Equal(t, "", req.GuideSequence)
}

func TestBuildJobRequestLengthMismatch(t *testing.T) {
	staged := []StagedFile{{OriginalName: "s1.ab1", StoragePath: "/tmp/s1"}}

	_, err := BuildJobRequest(staged, ResolveGroups([]string{"A", "B"}), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLabelCountMismatch))
}

func TestJobRequestWireForm(t *testing.T) {
	req, err := BuildJobRequest(
		[]StagedFile{{OriginalName: "s1.ab1", StoragePath: "/scratch/s1.ab1"}},
		ResolveGroups([]string{"KO"}),
		"GACCTTGAAGTTAACAGTCG",
	)
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"parsed_data": [{"fileName": "/scratch/s1.ab1"}],
		"guide_seq": "GACCTTGAAGTTAACAGTCG",
		"groups": ["KO"],
		"replicates": ["1"]
	}`, string(data))
}

func TestJobRequestWireFormEmpty(t *testing.T) {
	req, err := BuildJobRequest(nil, nil, "")
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"parsed_data":[],"guide_seq":"","groups":[],"replicates":[]}`, string(data))
}

func TestJobRequestWireWithNames(t *testing.T) {
	req, err := BuildJobRequest(
		[]StagedFile{{OriginalName: "s1.ab1", StoragePath: "/scratch/0_s1.ab1"}},
		ResolveGroups([]string{"A"}),
		"",
	)
	require.NoError(t, err)

	data, err := req.WireWithNames(func(f StagedFile) string { return f.OriginalName })
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fileName":"s1.ab1"`)
}
