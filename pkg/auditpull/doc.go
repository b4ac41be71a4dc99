// Package auditpull exposes the audit-log normalizer for programs that fetch
// records themselves and only need them in the canonical event shape.
//
// Quick start:
//
//	n := auditpull.New(auditpull.WithOrgID("org-123"))
//	event, err := n.Normalize(rawJSON)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(event.ID, event.Timestamp)
//
// A Normalizer holds no mutable state and is safe for concurrent use.
package auditpull
