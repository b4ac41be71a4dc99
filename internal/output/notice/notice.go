// Package notice writes structured run-lifecycle lines to the primary stream.
package notice

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/crimson-sun/auditpull/internal/model"
)

// Reporter emits model.Notice lines. It is safe for concurrent use.
type Reporter struct {
	mu    sync.Mutex
	w     io.Writer
	run   model.RunInfo
	newID func() string
}

// New creates a Reporter writing to w; nil means os.Stdout.
func New(w io.Writer, run model.RunInfo) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{w: w, run: run, newID: uuid.NewString}
}

// SetRun replaces the run context, e.g. once config has been loaded.
func (r *Reporter) SetRun(run model.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = run
}

// Emit writes one notice of the given type.
func (r *Reporter) Emit(typ, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := model.Notice{
		ID:       r.newID(),
		Provider: r.run.Provider,
		OrgID:    r.run.OrgIDPtr(),
		Type:     typ,
		Message:  message,
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notice: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("notice: write: %w", err)
	}
	return nil
}

func (r *Reporter) Started(message string) error  { return r.Emit(model.NoticeStarted, message) }
func (r *Reporter) Finished(message string) error { return r.Emit(model.NoticeFinished, message) }
func (r *Reporter) Warning(message string) error  { return r.Emit(model.NoticeWarning, message) }
func (r *Reporter) Error(message string) error    { return r.Emit(model.NoticeError, message) }
func (r *Reporter) Cleanup(message string) error  { return r.Emit(model.NoticeCleanup, message) }
