// Package dedup drops records already delivered earlier in the same run.
package dedup

import "github.com/crimson-sun/auditpull/internal/model"

// Deduplicator remembers record IDs across the pages of one query. It is not
// safe for concurrent use; a query fetches one page at a time.
type Deduplicator struct {
	seen map[string]struct{}
}

// New creates an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// DeduplicateBatch returns the records of batch not seen before, in order,
// and remembers their IDs. Records without an ID are always kept so the
// normalizer can reject them with context.
func (d *Deduplicator) DeduplicateBatch(batch []model.RawRecord) []model.RawRecord {
	if len(batch) == 0 {
		return nil
	}
	fresh := make([]model.RawRecord, 0, len(batch))
	for _, rec := range batch {
		id := rec.ID()
		if id != "" {
			if _, dup := d.seen[id]; dup {
				continue
			}
			d.seen[id] = struct{}{}
		}
		fresh = append(fresh, rec)
	}
	return fresh
}

// Len reports how many distinct IDs have been seen.
func (d *Deduplicator) Len() int { return len(d.seen) }
