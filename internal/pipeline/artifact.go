package pipeline

import (
	"context"
	"fmt"

	"github.com/crimson-sun/auditpull/internal/model"
	"github.com/crimson-sun/auditpull/internal/output"
	"github.com/crimson-sun/auditpull/internal/output/file"
)

// artifact is the per-run on-disk copy of the emitted events.
type artifact interface {
	output.Output
	Path() string
	Remove() error
}

func openFileArtifact(path string) (artifact, error) {
	out, err := file.New(path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mirror forwards events to an artifact without ever failing the caller.
// The first failure is reported once; later writes are dropped.
type mirror struct {
	artifact
	failed bool
	report func(message string)
}

func (m *mirror) Write(ctx context.Context, event model.Event) error {
	if m.failed {
		return nil
	}
	if err := m.artifact.Write(ctx, event); err != nil {
		m.fail(err)
	}
	return nil
}

func (m *mirror) fail(err error) {
	if m.failed {
		return
	}
	m.failed = true
	m.report(fmt.Sprintf("artifact %s incomplete: %v", m.Path(), err))
}
