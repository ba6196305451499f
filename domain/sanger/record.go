package sanger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Required keys of an engine result entry. Mean_edit and Error are optional:
// a missing or non-numeric Mean_edit marks a per-sample failure.
var requiredRecordFields = []string{"File", "Group", "Replicate"}

// SchemaError reports an engine result entry with the wrong shape
type SchemaError struct {
	Index  int
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("result[%d]: %s", e.Index, e.Reason)
}

// ParseRecord converts one JSON element of the engine result array.
func ParseRecord(index int, v gjson.Result) (ResultRecord, error) {
	if !v.IsObject() {
		return ResultRecord{}, &SchemaError{Index: index, Reason: "element is not an object"}
	}
	for _, field := range requiredRecordFields {
		if !v.Get(field).Exists() {
			return ResultRecord{}, &SchemaError{Index: index, Reason: "missing field " + field}
		}
	}

	rep, err := parseReplicate(v.Get("Replicate"))
	if err != nil {
		return ResultRecord{}, &SchemaError{Index: index, Reason: err.Error()}
	}

	rec := ResultRecord{
		File:      v.Get("File").String(),
		Group:     v.Get("Group").String(),
		Replicate: rep,
	}
	if me := v.Get("Mean_edit"); me.Type == gjson.Number {
		// Overflowing literals such as 1e999 parse to Inf and count as no value
		if value := me.Float(); !math.IsInf(value, 0) && !math.IsNaN(value) {
			rec.MeanEdit = &value
		}
	}
	if e := v.Get("Error"); e.Exists() && e.Type != gjson.Null && e.Type != gjson.False {
		rec.Error = e.String()
		if rec.Error == "" && e.Type != gjson.String {
			rec.Error = e.Raw
		}
	}
	return rec, nil
}

// ParseRecords converts a JSON array of engine result entries. Any malformed
// element fails the whole array.
func ParseRecords(v gjson.Result) ([]ResultRecord, error) {
	if !v.IsArray() {
		return nil, &SchemaError{Index: -1, Reason: "payload is not an array"}
	}
	elems := v.Array()
	records := make([]ResultRecord, 0, len(elems))
	for i, elem := range elems {
		rec, err := ParseRecord(i, elem)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// UnmarshalJSON accepts the loose engine encoding: numeric or string
// Replicate, and NaN strings or nulls for Mean_edit.
func (r *ResultRecord) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid result record JSON")
	}
	rec, err := ParseRecord(0, gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func parseReplicate(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		return int(v.Int()), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, fmt.Errorf("replicate %q is not an integer", v.Str)
		}
		return n, nil
	case gjson.Null:
		return 0, nil
	default:
		return 0, fmt.Errorf("replicate has unsupported type %s", v.Type)
	}
}
