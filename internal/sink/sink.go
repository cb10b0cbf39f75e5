// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink appends harvested article URIs to a plain-text file, one
// URI per line. Existing content is never rewritten or deduplicated.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// FileSink is an append-only URI file.
type FileSink struct {
	f       *os.File
	written int
}

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", types.ErrPersistence, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening output file: %v", types.ErrPersistence, err)
	}
	return &FileSink{f: f}, nil
}

// Append writes each URI as one line in order and syncs the file, so the
// URIs are on disk before the caller checkpoints the unit.
func (s *FileSink) Append(uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	w := bufio.NewWriter(s.f)
	for _, u := range uris {
		if _, err := w.WriteString(u + "\n"); err != nil {
			return fmt.Errorf("%w: writing URIs: %v", types.ErrPersistence, err)
		}
	}
	if err := errors.Join(w.Flush(), s.f.Sync()); err != nil {
		return fmt.Errorf("%w: writing URIs: %v", types.ErrPersistence, err)
	}
	s.written += len(uris)
	return nil
}

// Written returns the number of URIs appended through this sink.
func (s *FileSink) Written() int { return s.written }

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}
