// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress records which (journal, year) search units have been
// fully harvested so an interrupted run can resume without repeating them.
// It also records units that were started but never completed, so a unit
// left behind by a failure or crash is attempted again by the next run.
// Every mark is durable before it returns.
package progress

import (
	"context"
	"fmt"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// Store is the checkpoint of completed search units.
type Store interface {
	// IsComplete reports whether year has been fully harvested for journalID.
	IsComplete(journalID string, year int) bool

	// MarkComplete records the unit, clears its pending mark and persists
	// the checkpoint before returning. Failures are ErrPersistence.
	MarkComplete(ctx context.Context, journalID string, year int) error

	// IsPending reports whether the unit was started and has not completed
	// since.
	IsPending(journalID string, year int) bool

	// MarkStarted records the unit as pending before any of its pages is
	// fetched. Failures are ErrPersistence.
	MarkStarted(ctx context.Context, journalID string, year int) error

	// Snapshot returns a copy of the journal to completed-years mapping,
	// years in completion order.
	Snapshot() map[string][]int

	// Pending returns a copy of the started but incomplete units.
	Pending() map[string][]int

	Close() error
}

// Open opens the checkpoint backend selected by cfg. A checkpoint that does
// not exist yet yields an empty store.
func Open(cfg types.ProgressConfig) (Store, error) {
	switch cfg.Backend {
	case types.ProgressJSON, "":
		return OpenFile(cfg.File)
	case types.ProgressSQLite:
		return OpenSQLite(cfg.File)
	default:
		return nil, fmt.Errorf("%w: unsupported progress backend %q", types.ErrConfiguration, cfg.Backend)
	}
}

// history is an in-memory set of units per journal, shared by the backends.
type history map[string][]int

func (h history) has(journalID string, year int) bool {
	for _, y := range h[journalID] {
		if y == year {
			return true
		}
	}
	return false
}

// add reports whether year was newly added.
func (h history) add(journalID string, year int) bool {
	if h.has(journalID, year) {
		return false
	}
	h[journalID] = append(h[journalID], year)
	return true
}

func (h history) remove(journalID string, year int) {
	years := h[journalID]
	for i, y := range years {
		if y == year {
			h[journalID] = append(years[:i:i], years[i+1:]...)
			break
		}
	}
	if len(h[journalID]) == 0 {
		delete(h, journalID)
	}
}

func (h history) clone() map[string][]int {
	out := make(map[string][]int, len(h))
	for k, v := range h {
		out[k] = append([]int(nil), v...)
	}
	return out
}
