package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileStore keeps watermarks in a small JSON object on disk, e.g.
// {"lastTimestamp": 1720000001}. Keys it does not own are preserved.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path. The file is not touched
// until Load or Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context, key string) (Watermark, bool, error) {
	state, err := s.readState()
	if err != nil {
		return 0, false, err
	}
	raw, ok := state[key]
	if !ok {
		return 0, false, nil
	}
	w, err := parseWatermark(raw)
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint %s: key %q: %w", s.path, key, err)
	}
	return w, true, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so readers see either the old or the new state.
func (s *FileStore) Save(_ context.Context, key string, w Watermark) error {
	if w < 0 {
		return fmt.Errorf("checkpoint: refusing to save negative watermark %d", w)
	}
	state, err := s.readState()
	if err != nil || state == nil {
		// A corrupt file is replaced wholesale.
		state = map[string]json.RawMessage{}
	}
	state[key] = json.RawMessage(strconv.FormatInt(int64(w), 10))

	data, err := json.MarshalIndent(state, "", "   ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("checkpoint: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// readState returns nil, nil when the file does not exist.
func (s *FileStore) readState() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint %s: %w", s.path, err)
	}
	var state map[string]json.RawMessage
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("checkpoint %s: invalid JSON: %w", s.path, err)
	}
	return state, nil
}

// parseWatermark accepts a JSON integer or a string of digits.
func parseWatermark(raw json.RawMessage) (Watermark, error) {
	text := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer timestamp: %s", string(raw))
	}
	if n < 0 {
		return 0, fmt.Errorf("negative timestamp: %d", n)
	}
	return Watermark(n), nil
}
