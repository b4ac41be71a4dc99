package model

// Notice types emitted on the primary stream.
const (
	NoticeStarted  = "extraction started"
	NoticeFinished = "extraction finished"
	NoticeWarning  = "extraction warning"
	NoticeError    = "extraction error"
	NoticeCleanup  = "cleanup"
)

// Notice is a structured run-lifecycle line. It shares the provider block
// shape with Event so consumers can decode both with one rule.
type Notice struct {
	ID       string
	Provider string
	OrgID    *string
	Type     string
	Message  string
}

type noticeBody struct {
	OrgID   *string `json:"org_id"`
	Type    string  `json:"type"`
	Message string  `json:"message"`
}

func (n Notice) MarshalJSON() ([]byte, error) {
	return marshalFields([]field{
		{"id", n.ID},
		{providerKey(n.Provider), noticeBody{OrgID: n.OrgID, Type: n.Type, Message: n.Message}},
	})
}
