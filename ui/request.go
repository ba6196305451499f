package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"rbpscan/app"
	"rbpscan/domain/sanger"
	"rbpscan/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// analyzeJSONBody is the JSON form of an analysis submission
type analyzeJSONBody struct {
	GuideSeq   string          `json:"guideSeq"`
	Groups     json.RawMessage `json:"groups"`
	Replicates json.RawMessage `json:"replicates"`
	Files      []struct {
		Name    string `json:"name"`
		Content []byte `json:"content"` // base64
	} `json:"files"`
}

// exportJSONBody re-exports results a client already holds
type exportJSONBody struct {
	Samples []sanger.SampleMetadata `json:"samples"`
	Results []sanger.ResultRecord   `json:"results"`
}

// parseAnalyzeRequest reads either a multipart upload or a JSON body
func (s *Server) parseAnalyzeRequest(c *gin.Context) (app.AnalysisRequest, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return s.parseJSONRequest(c)
	}
	return s.parseMultipartRequest(c)
}

func (s *Server) parseMultipartRequest(c *gin.Context) (app.AnalysisRequest, error) {
	var req app.AnalysisRequest
	form, err := c.MultipartForm()
	if err != nil {
		return req, errors.InvalidInput("Expected a multipart upload with trace files.")
	}

	for _, fh := range form.File["files"] {
		if s.upload.MaxFileBytes > 0 && fh.Size > s.upload.MaxFileBytes {
			return req, errors.InvalidInput(app.InvalidFilesMessage)
		}
		content, err := s.readPart(fh)
		if err != nil {
			return req, errors.StagingError(err)
		}
		req.Files = append(req.Files, sanger.UploadedFile{Name: fh.Filename, Content: content})
	}

	req.GuideSequence = firstNonEmpty(c.PostForm("guide_seq"), c.PostForm("guideSeq"))
	if req.Groups, err = parseGroups(c.PostForm("groups")); err != nil {
		return req, err
	}
	if req.Replicates, err = parseReplicates(c.PostForm("replicates")); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) parseJSONRequest(c *gin.Context) (app.AnalysisRequest, error) {
	var req app.AnalysisRequest
	var body analyzeJSONBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return req, errors.InvalidInput("Invalid JSON request body.")
	}
	for _, f := range body.Files {
		req.Files = append(req.Files, sanger.UploadedFile{Name: f.Name, Content: f.Content})
	}
	req.GuideSequence = body.GuideSeq

	var err error
	if req.Groups, err = parseGroups(string(body.Groups)); err != nil {
		return req, err
	}
	if req.Replicates, err = parseReplicates(string(body.Replicates)); err != nil {
		return req, err
	}
	return req, nil
}

// parseGroups reads a JSON array of labels. Absent or null means no labels.
func parseGroups(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, errors.InvalidInput("groups must be a JSON array.")
	}
	v := gjson.Parse(raw)
	if !v.IsArray() {
		return nil, errors.InvalidInput("groups must be a JSON array.")
	}
	elems := v.Array()
	groups := make([]string, len(elems))
	for i, e := range elems {
		if e.Type != gjson.Null {
			groups[i] = e.String()
		}
	}
	return groups, nil
}

// parseReplicates reads a JSON array of numbers or numeric strings
func parseReplicates(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	v := gjson.Parse(raw)
	if !gjson.Valid(raw) || !v.IsArray() {
		return nil, errors.InvalidInput("replicates must be a JSON array.")
	}
	elems := v.Array()
	reps := make([]int, len(elems))
	for i, e := range elems {
		switch e.Type {
		case gjson.Number:
			reps[i] = int(e.Int())
		case gjson.String:
			n, err := strconv.Atoi(strings.TrimSpace(e.Str))
			if err != nil {
				return nil, errors.InvalidInput("replicates must be numbers.")
			}
			reps[i] = n
		default:
			return nil, errors.InvalidInput("replicates must be numbers.")
		}
	}
	return reps, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
