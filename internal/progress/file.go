// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// PendingSuffix names the file, next to the checkpoint, that holds units
// started but not completed.
const PendingSuffix = ".pending"

// FileStore keeps the checkpoint as a JSON object mapping journal IDs to
// arrays of completed years, e.g. {"0001-0001": [2023, 2022]}. Pending
// units use the same shape in a sibling file ending in PendingSuffix,
// which is removed when nothing is pending.
type FileStore struct {
	path    string
	h       history
	pending history
}

// OpenFile loads the checkpoint at path. A missing file is a fresh start; a
// file that is not a valid checkpoint is ErrCorruptCheckpoint.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, h: history{}, pending: history{}}
	if err := loadHistory(path, s.h); err != nil {
		return nil, err
	}
	if err := loadHistory(s.pendingPath(), s.pending); err != nil {
		return nil, err
	}
	return s, nil
}

func loadHistory(path string, h history) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: reading checkpoint %s: %v", types.ErrPersistence, path, err)
	}

	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrCorruptCheckpoint, path, err)
	}
	for id, years := range raw {
		for _, y := range years {
			h.add(id, y)
		}
	}
	return nil
}

// Path returns the checkpoint location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) pendingPath() string { return s.path + PendingSuffix }

// IsComplete reports whether the unit is in the checkpoint.
func (s *FileStore) IsComplete(journalID string, year int) bool {
	return s.h.has(journalID, year)
}

// IsPending reports whether the unit is in the pending file.
func (s *FileStore) IsPending(journalID string, year int) bool {
	return s.pending.has(journalID, year)
}

// MarkStarted adds the unit to the pending file.
func (s *FileStore) MarkStarted(_ context.Context, journalID string, year int) error {
	if !s.pending.add(journalID, year) {
		return nil
	}
	if err := s.savePending(); err != nil {
		s.pending.remove(journalID, year)
		return err
	}
	return nil
}

// MarkComplete adds the unit and rewrites the whole checkpoint, then drops
// the unit from the pending file. A crash between the two writes leaves the
// unit both complete and pending; complete wins.
func (s *FileStore) MarkComplete(_ context.Context, journalID string, year int) error {
	added := s.h.add(journalID, year)
	if err := writeJSON(s.path, s.h); err != nil {
		if added {
			s.h.remove(journalID, year)
		}
		return err
	}

	if !s.pending.has(journalID, year) {
		return nil
	}
	s.pending.remove(journalID, year)
	if err := s.savePending(); err != nil {
		s.pending.add(journalID, year)
		return err
	}
	return nil
}

// Snapshot returns a copy of the checkpoint contents.
func (s *FileStore) Snapshot() map[string][]int { return s.h.clone() }

// Pending returns a copy of the pending units.
func (s *FileStore) Pending() map[string][]int { return s.pending.clone() }

// Close is a no-op; every mark is already on disk.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) savePending() error {
	if len(s.pending) == 0 {
		if err := os.Remove(s.pendingPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: removing pending file: %v", types.ErrPersistence, err)
		}
		return nil
	}
	return writeJSON(s.pendingPath(), s.pending)
}

// writeJSON writes h to a temporary file and renames it over path, so a
// crash mid-write leaves the previous snapshot intact.
func writeJSON(path string, h history) error {
	data, err := json.Marshal(map[string][]int(h))
	if err != nil {
		return fmt.Errorf("%w: encoding checkpoint: %v", types.ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating checkpoint directory: %v", types.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", types.ErrPersistence, err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing checkpoint: %v", types.ErrPersistence, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing checkpoint: %v", types.ErrPersistence, err)
	}
	return nil
}
