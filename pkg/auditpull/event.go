package auditpull

import "time"

// Event is a normalized audit-log event.
// This is the stable public type; the wire format written by the auditpull
// command may evolve independently. Optional fields are nil when the record
// does not carry them and serialize as null.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SourceIP    *string   `json:"source_ip"`
	SourceUser  *string   `json:"source_user"`
	Provider    string    `json:"provider"`
	OrgID       *string   `json:"org_id"`
	ProjectID   *string   `json:"project_id"`
	ProjectName *string   `json:"project_name"`
	Type        *string   `json:"type"`
	ObjectID    *string   `json:"object_id"`
	ObjectType  *string   `json:"object_type"`
	Message     string    `json:"message"` // compact JSON of the original record
}
