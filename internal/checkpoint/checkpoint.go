// Package checkpoint persists the watermark that lets a run resume where the
// previous successful run stopped.
package checkpoint

import (
	"context"
	"time"
)

// DefaultKey is the state key used when none is configured.
const DefaultKey = "lastTimestamp"

// Watermark is a non-negative seconds-since-epoch boundary. Records with
// effective time >= the watermark have not yet been delivered.
type Watermark int64

// Time returns the watermark as a UTC time.
func (w Watermark) Time() time.Time {
	return time.Unix(int64(w), 0).UTC()
}

// Store reads and atomically replaces watermarks by key.
type Store interface {
	// Load returns the stored watermark. ok is false when nothing usable is
	// stored; err is non-nil when stored data was present but unreadable, so
	// callers can report it before falling back.
	Load(ctx context.Context, key string) (w Watermark, ok bool, err error)

	// Save atomically replaces the watermark for key.
	Save(ctx context.Context, key string, w Watermark) error

	Close() error
}

// Fallback returns now minus lookback, clamped at zero.
func Fallback(now time.Time, lookback time.Duration) Watermark {
	w := now.Add(-lookback).Unix()
	if w < 0 {
		return 0
	}
	return Watermark(w)
}
