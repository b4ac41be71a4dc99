package model

import "time"

// RunInfo identifies one extraction run. It is passed explicitly to every
// component that needs run-scoped values.
type RunInfo struct {
	ID        string
	Provider  string
	OrgID     string
	StartedAt time.Time
}

// OrgIDPtr returns the org ID as a nullable value for serialization.
func (r RunInfo) OrgIDPtr() *string {
	if r.OrgID == "" {
		return nil
	}
	return StringPtr(r.OrgID)
}
