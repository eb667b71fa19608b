// Package watermark persists the incremental-load cursor per
// (pipeline, source, cursor_field), satisfying executor.WatermarkStore
// (spec §4.4 "Watermark handling"). There is no teacher analogue for this
// small keyed ledger shape, so the implementation is a justified stdlib-only
// in-memory map with an optional JSON file backing via encoding/json and os.
package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sqlflow/sqlflow"
)

// Store is an in-memory, optionally file-backed executor.WatermarkStore.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	path   string
}

// NewStore returns an empty in-memory Store.
func NewStore() *Store {
	return &Store{values: map[string]string{}}
}

// NewFileStore returns a Store backed by a JSON file at path, loading any
// existing contents immediately. A missing file is treated as empty.
func NewFileStore(path string) (*Store, error) {
	s := &Store{values: map[string]string{}, path: path}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}

		return nil, fmt.Errorf("%w: watermark: read %s: %v", sqlflow.ErrStepExecution, path, err)
	}

	if len(b) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(b, &s.values); err != nil {
		return nil, fmt.Errorf("%w: watermark: parse %s: %v", sqlflow.ErrStepExecution, path, err)
	}

	return s, nil
}

func key(pipelineName, source, cursorField string) string {
	return pipelineName + "\x1f" + source + "\x1f" + cursorField
}

// Get implements executor.WatermarkStore.
func (s *Store) Get(ctx context.Context, pipelineName, source, cursorField string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key(pipelineName, source, cursorField)]

	return v, ok, nil
}

// Set implements executor.WatermarkStore, persisting to disk immediately
// when the Store is file-backed so a crash between steps does not lose the
// watermark (spec §9 Open Question: failed watermark persistence is a step
// warning, not a step failure — callers decide what to do with the error).
func (s *Store) Set(ctx context.Context, pipelineName, source, cursorField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key(pipelineName, source, cursorField)] = value

	if s.path == "" {
		return nil
	}

	b, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: watermark: marshal: %v", sqlflow.ErrStepExecution, err)
	}

	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("%w: watermark: write %s: %v", sqlflow.ErrStepExecution, s.path, err)
	}

	return nil
}
