package output

import (
	"context"

	"github.com/crimson-sun/auditpull/internal/model"
)

// Output defines the interface for normalized event destinations.
type Output interface {
	Write(ctx context.Context, event model.Event) error
	Close() error
}
