// Package engine adapts external analysis engines to ports.AnalysisEngine.
// Every adapter reduces its transport to (stdout, exit code, stderr) and
// hands that triple to Decode.
package engine

import (
	"fmt"
	"strings"

	"rbpscan/domain/sanger"
	"rbpscan/internal/errors"

	"github.com/tidwall/gjson"
)

// LastLine returns the final line of engine output. Leading and trailing
// whitespace is ignored and a trailing carriage return is stripped, so
// "log\n[...]\n" and "log\r\n[...]\r\n" both yield "[...]".
func LastLine(stdout string) string {
	trimmed := strings.TrimSpace(stdout)
	if i := strings.LastIndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(trimmed, "\r"))
}

// Decode turns a finished engine invocation into result records. A non-zero
// exit always fails the run, whatever stdout holds. Otherwise the last line
// of stdout must be a JSON array of result objects; nothing partial is
// returned.
func Decode(stdout string, exitCode int, stderr string) ([]sanger.ResultRecord, error) {
	if exitCode != 0 {
		return nil, errors.EngineExecutionError(exitCode, stderr)
	}
	return DecodePayload(LastLine(stdout))
}

// DecodePayload parses an already extracted payload
func DecodePayload(payload string) ([]sanger.ResultRecord, error) {
	if payload == "" {
		return nil, errors.InvalidEngineOutput(fmt.Errorf("engine produced no output"))
	}
	if !gjson.Valid(payload) {
		return nil, errors.InvalidEngineOutput(fmt.Errorf("payload is not valid JSON: %s", preview(payload)))
	}
	records, err := sanger.ParseRecords(gjson.Parse(payload))
	if err != nil {
		return nil, errors.MalformedResultSchema(err.Error())
	}
	return records, nil
}

func preview(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
