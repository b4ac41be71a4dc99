package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/crimson-sun/auditpull/internal/model"
)

const defaultBufSize = 64 * 1024 // 64KB

// ArtifactPrefix starts every per-run artifact file name.
const ArtifactPrefix = "auditpull_"

// Option configures a file Output.
type Option func(*Output)

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes NDJSON to a file with buffered I/O. It backs the per-run
// artifact that mirrors the primary stream.
type Output struct {
	w       *bufio.Writer
	f       *os.File
	mu      sync.Mutex
	path    string
	bufSize int
}

// ArtifactPath returns the artifact path for a run of provider started at t.
func ArtifactPath(dir, provider string, t time.Time) string {
	return filepath.Join(dir, ArtifactPrefix+provider+"_"+strconv.FormatInt(t.Unix(), 10)+".log")
}

// ArtifactGlob matches every artifact of provider in dir.
func ArtifactGlob(dir, provider string) string {
	return filepath.Join(dir, ArtifactPrefix+provider+"_*.log")
}

// New creates a file output that appends NDJSON to the given path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		path:    path,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file output: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("file output: open %s: %w", path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	return o, nil
}

// Path returns the file path.
func (o *Output) Path() string { return o.path }

// Write JSON-encodes the event and appends it as a line to the file.
func (o *Output) Write(_ context.Context, event model.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}
	data = append(data, '\n')

	if _, err := o.w.Write(data); err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

// Remove deletes the file. A file that is already gone is not an error.
func (o *Output) Remove() error {
	if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file output: remove: %w", err)
	}
	return nil
}

// CleanupStale removes regular files matching pattern whose modification
// time is older than maxAge. It returns the removed paths and any errors
// joined; a failure on one file does not stop the others.
func CleanupStale(pattern string, maxAge time.Duration, now time.Time) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}

	var removed []string
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.Mode().IsRegular() || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
