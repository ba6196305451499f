package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"rbpscan/internal/errors"
	"rbpscan/ports"

	"github.com/gin-gonic/gin"
)

const formatJSON = "json"

// handleHealth reports liveness
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyze runs one analysis and answers with JSON or a file download
func (s *Server) handleAnalyze(c *gin.Context) {
	req, err := s.parseAnalyzeRequest(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	format, exporter, err := s.responseFormat(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.service.Analyze(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if format == formatJSON {
		s.writeJSON(c, result)
		return
	}
	s.writeExport(c, exporter, result.ExportData())
}

// handleExport renders results the caller already holds without rerunning the engine
func (s *Server) handleExport(c *gin.Context) {
	var body exportJSONBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, errors.InvalidInput("Invalid JSON request body."))
		return
	}
	format, exporter, err := s.responseFormat(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result := s.service.Reanalyze(body.Samples, body.Results)
	if format == formatJSON {
		s.writeJSON(c, result)
		return
	}
	s.writeExport(c, exporter, result.ExportData())
}

func (s *Server) handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
}

func (s *Server) handleNotFound(c *gin.Context) {
	s.writeError(c, errors.NotFound("route"))
}

// responseFormat reads ?format= (or the form field), defaulting to JSON
func (s *Server) responseFormat(c *gin.Context) (string, ports.Exporter, error) {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = strings.ToLower(strings.TrimSpace(c.PostForm("format")))
	}
	if format == "" || format == formatJSON {
		return formatJSON, nil, nil
	}
	exporter, ok := s.exporters(format)
	if !ok {
		return "", nil, errors.InvalidInput(fmt.Sprintf("Unsupported format %q.", format))
	}
	return format, exporter, nil
}

// writeExport renders fully before writing so a failed export never sends a partial file
func (s *Server) writeExport(c *gin.Context, exporter ports.Exporter, data ports.ExportData) {
	var buf bytes.Buffer
	if err := exporter.Export(&buf, data); err != nil {
		s.logger.Error("[Server] %s export failed: %v", exporter.Format(), err)
		s.writeError(c, errors.Wrap(err, "export failed"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.FileName()))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

// writeJSON encodes fully before writing so an unencodable result becomes a 500
// instead of an empty 200
func (s *Server) writeJSON(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeError(c, errors.Wrap(err, "failed to encode response"))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// writeError sends {error, code}. Engine diagnostics stay in the logs.
func (s *Server) writeError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[Server] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": errors.PublicMessage(err),
		"code":  errors.Reason(err),
	})
}
