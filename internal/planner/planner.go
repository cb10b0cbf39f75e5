// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner turns holdings rows into the ordered search units a run
// will attempt.
//
// Years are scanned newest first, over the open interval
// (FirstYear, LastYear). Scanning for a journal stops at the first year
// already complete: a completed year means every older year was finished
// by an earlier run, because units complete in descending order. The one
// exception is a pending year, a unit that was started and never
// completed; the scan resumes there and continues down to the next
// completed year.
package planner

import "github.com/pdiddy/sd-oa-harvest/pkg/types"

// Checker answers whether a unit is already harvested, or was left
// unfinished by an earlier run.
type Checker interface {
	IsComplete(journalID string, year int) bool
	IsPending(journalID string, year int) bool
}

// Years returns the years to attempt for row, newest first, stopping at the
// first completed year and resuming at any pending year below it.
// stoppedAt is the first completed year met, or 0 when there was none.
func Years(row types.HoldingsRow, done Checker) (years []int, stoppedAt int) {
	scanning := true
	for y := row.LastYear - 1; y > row.FirstYear; y-- {
		switch {
		case done.IsComplete(row.JournalID, y):
			if stoppedAt == 0 {
				stoppedAt = y
			}
			scanning = false
		case done.IsPending(row.JournalID, y):
			scanning = true
		}
		if scanning {
			years = append(years, y)
		}
	}
	return years, stoppedAt
}

// JournalPlan is the plan for one holdings row.
type JournalPlan struct {
	Row   types.HoldingsRow `json:"row" yaml:"row"`
	Years []int             `json:"years" yaml:"years"`

	// StoppedAt is the completed year that ended the scan, 0 if none.
	StoppedAt int `json:"stopped_at,omitempty" yaml:"stopped_at,omitempty"`
}

// Units returns the plan as search units in attempt order.
func (p JournalPlan) Units() []types.SearchUnit {
	units := make([]types.SearchUnit, len(p.Years))
	for i, y := range p.Years {
		units[i] = types.SearchUnit{JournalID: p.Row.JournalID, Year: y}
	}
	return units
}

// Plan computes the plan for every row, in holdings order.
func Plan(rows []types.HoldingsRow, done Checker) []JournalPlan {
	plans := make([]JournalPlan, 0, len(rows))
	for _, row := range rows {
		years, stopped := Years(row, done)
		plans = append(plans, JournalPlan{Row: row, Years: years, StoppedAt: stopped})
	}
	return plans
}

// TotalUnits counts the units across plans.
func TotalUnits(plans []JournalPlan) int {
	n := 0
	for _, p := range plans {
		n += len(p.Years)
	}
	return n
}
