package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/auditpull/internal/model"
)

// Engine maps provider audit-log records onto the normalized Event shape.
// It holds no state; run-scoped values arrive through model.RunInfo.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// RecordError reports a record that cannot be normalized. Such a record is
// fatal for the whole run.
type RecordError struct {
	Index int // position in the batch, -1 when processed singly
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	var b strings.Builder
	b.WriteString("record")
	if e.Index >= 0 {
		fmt.Fprintf(&b, " %d", e.Index)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (%s)", e.ID)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *RecordError) Unwrap() error { return e.Err }

// Process normalizes a single record. Absent optional fields become nil.
func (e *Engine) Process(run model.RunInfo, rec model.RawRecord) (model.Event, error) {
	id := rec.ID()
	if id == "" {
		return model.Event{}, &RecordError{Index: -1, Err: model.ErrMissingID}
	}
	ts, err := rec.EffectiveAt()
	if err != nil {
		return model.Event{}, &RecordError{Index: -1, ID: id, Err: err}
	}

	evType := rec.Type()

	return model.Event{
		ID:         id,
		Timestamp:  time.Unix(ts, 0).UTC().Format(model.TimestampLayout),
		SourceIP:   stringValue(rec.Lookup("actor", "session", "ip_address")),
		SourceUser: stringValue(rec.Lookup("actor", "session", "user", "email")),
		Provider:   run.Provider,
		Payload: model.Payload{
			OrgID:       run.OrgIDPtr(),
			ProjectID:   stringValue(rec.Lookup("project", "id")),
			ProjectName: stringValue(rec.Lookup("project", "name")),
			Type:        stringValue(rec.Lookup("type")),
			ObjectID:    objectID(rec, evType),
			ObjectType:  objectType(evType),
			Message:     compactJSON(rec.Raw),
		},
		EffectiveAt: ts,
	}, nil
}

// ProcessBatch normalizes records in order and stops at the first failure.
func (e *Engine) ProcessBatch(run model.RunInfo, recs []model.RawRecord) ([]model.Event, error) {
	events := make([]model.Event, 0, len(recs))
	for i, rec := range recs {
		ev, err := e.Process(run, rec)
		if err != nil {
			if re, ok := err.(*RecordError); ok {
				re.Index = i
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// objectType strips the last dot-separated segment: "project.created" -> "project".
func objectType(evType string) *string {
	i := strings.LastIndex(evType, ".")
	if i < 0 {
		return nil
	}
	return model.StringPtr(evType[:i])
}

// objectID reads rec[evType].id when rec carries a sub-object under the
// full event type.
func objectID(rec model.RawRecord, evType string) *string {
	if evType == "" {
		return nil
	}
	if _, ok := rec.Fields[evType].(map[string]any); !ok {
		return nil
	}
	return stringValue(rec.Lookup(evType, "id"))
}

// stringValue renders a looked-up JSON value as text; absent values are nil.
func stringValue(v any, ok bool) *string {
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		return &x
	case json.Number:
		return model.StringPtr(x.String())
	case bool:
		return model.StringPtr(strconv.FormatBool(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return model.StringPtr(string(b))
	}
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
