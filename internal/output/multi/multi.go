package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/auditpull/internal/model"
	"github.com/crimson-sun/auditpull/internal/output"
)

// Multi fans out events to several outputs, e.g. stdout plus the per-run
// artifact. Delivery is sequential; a failing output does not stop the rest.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Add appends an output. Outputs receive events in the order they were added.
func (m *Multi) Add(o output.Output) {
	m.outputs = append(m.outputs, o)
}

// Len reports how many outputs are attached.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers the event to every wrapped output. Errors are collected
// but do not prevent delivery to subsequent outputs.
func (m *Multi) Write(ctx context.Context, event model.Event) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
