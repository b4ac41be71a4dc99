package auditpull

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crimson-sun/auditpull/internal/engine"
	"github.com/crimson-sun/auditpull/internal/model"
)

// Normalizer converts raw audit-log records into Events.
type Normalizer struct {
	engine *engine.Engine
	run    model.RunInfo
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Normalizer{
		engine: engine.New(),
		run:    model.RunInfo{Provider: o.provider, OrgID: o.orgID},
	}
}

// Normalize converts one JSON-encoded record.
func (n *Normalizer) Normalize(data []byte) (Event, error) {
	rec, err := model.DecodeRawRecord(json.RawMessage(data))
	if err != nil {
		return Event{}, fmt.Errorf("auditpull: %w", err)
	}
	ev, err := n.engine.Process(n.run, rec)
	if err != nil {
		return Event{}, fmt.Errorf("auditpull: %w", err)
	}
	return eventFromModel(ev), nil
}

// NormalizeBatch converts records in order and stops at the first failure,
// returning an error that names the offending record.
func (n *Normalizer) NormalizeBatch(records []json.RawMessage) ([]Event, error) {
	recs := make([]model.RawRecord, len(records))
	for i, data := range records {
		rec, err := model.DecodeRawRecord(data)
		if err != nil {
			return nil, fmt.Errorf("auditpull: record %d: %w", i, err)
		}
		recs[i] = rec
	}
	evs, err := n.engine.ProcessBatch(n.run, recs)
	if err != nil {
		return nil, fmt.Errorf("auditpull: %w", err)
	}
	events := make([]Event, len(evs))
	for i, ev := range evs {
		events[i] = eventFromModel(ev)
	}
	return events, nil
}

// eventFromModel converts the internal Event to the public Event type.
func eventFromModel(ev model.Event) Event {
	return Event{
		ID:          ev.ID,
		Timestamp:   time.Unix(ev.EffectiveAt, 0).UTC(),
		SourceIP:    ev.SourceIP,
		SourceUser:  ev.SourceUser,
		Provider:    ev.Provider,
		OrgID:       ev.Payload.OrgID,
		ProjectID:   ev.Payload.ProjectID,
		ProjectName: ev.Payload.ProjectName,
		Type:        ev.Payload.Type,
		ObjectID:    ev.Payload.ObjectID,
		ObjectType:  ev.Payload.ObjectType,
		Message:     ev.Payload.Message,
	}
}
