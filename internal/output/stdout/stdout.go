package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/auditpull/internal/model"
)

// Output writes JSON-encoded events, one per line, to stdout or any writer.
type Output struct {
	enc *json.Encoder
}

// New creates an Output on w; nil means os.Stdout.
func New(w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Output{enc: enc}
}

func (o *Output) Write(_ context.Context, event model.Event) error {
	if err := o.enc.Encode(event); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
