package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// RawRecord is one provider audit-log object as returned by the API.
// Fields holds the decoded object (numbers kept as json.Number);
// Raw holds the original bytes.
type RawRecord struct {
	Fields map[string]any
	Raw    json.RawMessage
}

var (
	ErrMissingID        = errors.New("missing id")
	ErrMissingTimestamp = errors.New("missing effective_at")
)

// DecodeRawRecord decodes a single JSON object into a RawRecord.
func DecodeRawRecord(data json.RawMessage) (RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return RawRecord{}, err
	}
	if fields == nil {
		return RawRecord{}, errors.New("record is not a JSON object")
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return RawRecord{Fields: fields, Raw: raw}, nil
}

// ID returns the record identifier, or "" if absent or not a string.
func (r RawRecord) ID() string {
	s, _ := r.Fields["id"].(string)
	return s
}

// Type returns the event-type string, or "" if absent.
func (r RawRecord) Type() string {
	s, _ := r.Fields["type"].(string)
	return s
}

// EffectiveAt returns the record's effective time in seconds since epoch.
// Fractional values are truncated.
func (r RawRecord) EffectiveAt() (int64, error) {
	v, ok := r.Fields["effective_at"]
	if !ok || v == nil {
		return 0, ErrMissingTimestamp
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("effective_at: expected number, got %T", v)
	}
	sec, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 {
			return 0, fmt.Errorf("effective_at: invalid number %q", n.String())
		}
		sec = int64(f)
	}
	if sec < 0 {
		return 0, fmt.Errorf("effective_at: negative value %d", sec)
	}
	return sec, nil
}

// Lookup walks nested objects along path. A missing key or a non-object at
// any depth reports false.
func (r RawRecord) Lookup(path ...string) (any, bool) {
	var cur any = r.Fields
	for _, k := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}
