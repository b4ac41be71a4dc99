package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/auditpull/internal/model"
)

var testRun = model.RunInfo{ID: "run-1", Provider: "openai", OrgID: "org_abc"}

func mustRecord(t *testing.T, s string) model.RawRecord {
	t.Helper()
	rec, err := model.DecodeRawRecord(json.RawMessage(s))
	require.NoError(t, err)
	return rec
}

const fullRecord = `{
  "id": "audit_log-xyz",
  "type": "project.created",
  "effective_at": 1720000000,
  "project": {"id": "proj_1", "name": "Main"},
  "actor": {
    "type": "session",
    "session": {
      "user": {"id": "user_1", "email": "ops@example.com"},
      "ip_address": "203.0.113.7"
    }
  },
  "project.created": {"id": "proj_1", "data": {"name": "Main"}}
}`

func TestProcess_FullRecord(t *testing.T) {
	ev, err := New().Process(testRun, mustRecord(t, fullRecord))
	require.NoError(t, err)

	assert.Equal(t, "audit_log-xyz", ev.ID)
	assert.Equal(t, "2024-07-03T09:46:40+00:00", ev.Timestamp)
	assert.Equal(t, int64(1720000000), ev.EffectiveAt)
	assert.Equal(t, "openai", ev.Provider)
	require.NotNil(t, ev.SourceIP)
	assert.Equal(t, "203.0.113.7", *ev.SourceIP)
	require.NotNil(t, ev.SourceUser)
	assert.Equal(t, "ops@example.com", *ev.SourceUser)

	p := ev.Payload
	assert.Equal(t, "org_abc", *p.OrgID)
	assert.Equal(t, "proj_1", *p.ProjectID)
	assert.Equal(t, "Main", *p.ProjectName)
	assert.Equal(t, "project.created", *p.Type)
	assert.Equal(t, "proj_1", *p.ObjectID)
	assert.Equal(t, "project", *p.ObjectType)

	// message is the full original record, compacted
	var orig, msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(fullRecord), &orig))
	require.NoError(t, json.Unmarshal([]byte(p.Message), &msg))
	assert.Equal(t, orig, msg)
	assert.NotContains(t, p.Message, "\n")
}

func TestProcess_MissingIPIsExplicitNull(t *testing.T) {
	rec := mustRecord(t, `{"id":"a1","type":"login.succeeded","effective_at":1,"actor":{"session":{"user":{"email":"x@y.z"}}}}`)
	ev, err := New().Process(testRun, rec)
	require.NoError(t, err)

	assert.Nil(t, ev.SourceIP)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	v, present := m["srcip"]
	assert.True(t, present, "srcip must be present")
	assert.Nil(t, v)
	assert.Equal(t, "x@y.z", m["srcuser"])
}

func TestProcess_AbsentOptionalFields(t *testing.T) {
	rec := mustRecord(t, `{"id":"a1","effective_at":1,"actor":{"type":"api_key","api_key":{"id":"key_1"}}}`)
	ev, err := New().Process(testRun, rec)
	require.NoError(t, err)

	assert.Nil(t, ev.SourceIP)
	assert.Nil(t, ev.SourceUser)
	assert.Nil(t, ev.Payload.ProjectID)
	assert.Nil(t, ev.Payload.ProjectName)
	assert.Nil(t, ev.Payload.Type)
	assert.Nil(t, ev.Payload.ObjectID)
	assert.Nil(t, ev.Payload.ObjectType)
}

func TestObjectType(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"project.created", model.StringPtr("project")},
		{"service_account.api_key.deleted", model.StringPtr("service_account.api_key")},
		{"logout", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, objectType(tt.in), "objectType(%q)", tt.in)
	}
}

func TestProcess_ObjectIDRequiresSubObject(t *testing.T) {
	tests := []struct {
		name string
		rec  string
		want *string
	}{
		{"present", `{"id":"a","type":"invite.sent","effective_at":1,"invite.sent":{"id":"inv_1"}}`, model.StringPtr("inv_1")},
		{"sub-object without id", `{"id":"a","type":"invite.sent","effective_at":1,"invite.sent":{"email":"x"}}`, nil},
		{"not an object", `{"id":"a","type":"invite.sent","effective_at":1,"invite.sent":"inv_1"}`, nil},
		{"missing", `{"id":"a","type":"invite.sent","effective_at":1}`, nil},
		{"numeric id", `{"id":"a","type":"x.y","effective_at":1,"x.y":{"id":7}}`, model.StringPtr("7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New().Process(testRun, mustRecord(t, tt.rec))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Payload.ObjectID)
		})
	}
}

func TestProcess_NoOrgID(t *testing.T) {
	ev, err := New().Process(model.RunInfo{Provider: "openai"}, mustRecord(t, `{"id":"a","effective_at":1}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Payload.OrgID)
}

func TestProcess_MissingID(t *testing.T) {
	_, err := New().Process(testRun, mustRecord(t, `{"type":"x.y","effective_at":1}`))
	var re *RecordError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, model.ErrMissingID)
	assert.Equal(t, -1, re.Index)
}

func TestProcess_MalformedTimestamp(t *testing.T) {
	for _, s := range []string{
		`{"id":"bad","effective_at":"yesterday"}`,
		`{"id":"bad","effective_at":-10}`,
		`{"id":"bad"}`,
	} {
		_, err := New().Process(testRun, mustRecord(t, s))
		var re *RecordError
		require.True(t, errors.As(err, &re), "input %s", s)
		assert.Equal(t, "bad", re.ID)
		assert.Contains(t, err.Error(), "(bad)")
	}
}

func TestProcessBatch(t *testing.T) {
	recs := []model.RawRecord{
		mustRecord(t, `{"id":"a","effective_at":1}`),
		mustRecord(t, `{"id":"b","effective_at":2}`),
	}
	events, err := New().ProcessBatch(testRun, recs)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "b", events[1].ID)
}

func TestProcessBatch_StopsAtFirstBadRecord(t *testing.T) {
	recs := []model.RawRecord{
		mustRecord(t, `{"id":"a","effective_at":1}`),
		mustRecord(t, `{"id":"b","effective_at":"x"}`),
		mustRecord(t, `{"effective_at":3}`),
	}
	events, err := New().ProcessBatch(testRun, recs)
	assert.Nil(t, events)

	var re *RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Index)
	assert.Equal(t, "b", re.ID)
	assert.Contains(t, err.Error(), "record 1 (b)")
}
