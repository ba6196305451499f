package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" DEBUG "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LogLevelWarn, &buf)

	logger.Info("[Test] hidden %d", 1)
	assert.Empty(t, buf.String())

	logger.Warn("[Test] shown %d", 2)
	assert.Contains(t, buf.String(), "[Test] shown 2")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LogLevelInfo, &buf).With("run_id", "r-1")

	logger.Info("staged")
	assert.Contains(t, buf.String(), `"run_id":"r-1"`)
}
