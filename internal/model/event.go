package model

import (
	"bytes"
	"encoding/json"
)

// TimestampLayout renders UTC times as ISO-8601 with an explicit +00:00 offset.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// Event is auditpull's output type: one normalized audit-log record.
// Nil pointers serialize as JSON null.
type Event struct {
	ID          string
	Timestamp   string
	SourceIP    *string
	SourceUser  *string
	Provider    string // key of the provider block, e.g. "openai"
	Payload     Payload
	EffectiveAt int64 // seconds since epoch of the source record
}

// Payload is the provider-specific block of an Event.
type Payload struct {
	OrgID       *string `json:"org_id"`
	ProjectID   *string `json:"project_id"`
	ProjectName *string `json:"project_name"`
	Type        *string `json:"type"`
	ObjectID    *string `json:"object_id"`
	ObjectType  *string `json:"object_type"`
	Message     string  `json:"message"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return marshalFields([]field{
		{"id", e.ID},
		{"timestamp", e.Timestamp},
		{"srcip", e.SourceIP},
		{"srcuser", e.SourceUser},
		{providerKey(e.Provider), e.Payload},
	})
}

type field struct {
	key   string
	value any
}

// marshalFields encodes an object with keys in the given order. HTML
// characters are left unescaped.
func marshalFields(fields []field) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(f.key); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		buf.WriteByte(':')
		if err := enc.Encode(f.value); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func providerKey(p string) string {
	if p == "" {
		return "provider"
	}
	return p
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
