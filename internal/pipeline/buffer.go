package pipeline

import (
	"cmp"
	"context"
	"slices"

	"github.com/crimson-sun/auditpull/internal/checkpoint"
	"github.com/crimson-sun/auditpull/internal/model"
	"github.com/crimson-sun/auditpull/internal/output"
)

// runBuffer holds the normalized events of the current run, in order, until
// they are emitted. It lives only as long as one Run call.
type runBuffer struct {
	events []model.Event
}

func newRunBuffer(capacity int) *runBuffer {
	return &runBuffer{events: make([]model.Event, 0, capacity)}
}

func (b *runBuffer) add(events ...model.Event) {
	b.events = append(b.events, events...)
}

func (b *runBuffer) len() int { return len(b.events) }

// sortByTime orders events by effective time, keeping arrival order for ties.
func (b *runBuffer) sortByTime() {
	slices.SortStableFunc(b.events, func(x, y model.Event) int {
		return cmp.Compare(x.EffectiveAt, y.EffectiveAt)
	})
}

// nextWatermark returns max(effective time) + 1, or false when empty.
func (b *runBuffer) nextWatermark() (checkpoint.Watermark, bool) {
	if len(b.events) == 0 {
		return 0, false
	}
	maxTS := b.events[0].EffectiveAt
	for _, e := range b.events[1:] {
		if e.EffectiveAt > maxTS {
			maxTS = e.EffectiveAt
		}
	}
	return checkpoint.Watermark(maxTS + 1), true
}

// flush writes every buffered event to out, stopping at the first error.
func (b *runBuffer) flush(ctx context.Context, out output.Output) error {
	for _, e := range b.events {
		if err := out.Write(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
