// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the open-access harvester:
// holdings rows, search units, configuration and error kinds.
package types

import "fmt"

// HoldingsRow is one journal title from the holdings report, reduced to
// year granularity. FirstYear <= LastYear.
type HoldingsRow struct {
	// JournalID is the title identifier from the report (an ISSN).
	JournalID string `json:"journal_id" yaml:"journal_id"`

	// FirstYear is the year of the first issue online.
	FirstYear int `json:"first_year" yaml:"first_year"`

	// LastYear is the year of the last issue online, or the current year
	// plus one when the title is still active.
	LastYear int `json:"last_year" yaml:"last_year"`
}

// SearchUnit is the atomic unit of harvesting work: one journal, one
// publication year.
type SearchUnit struct {
	JournalID string `json:"journal_id" yaml:"journal_id"`
	Year      int    `json:"year" yaml:"year"`
}

// String returns "issn/year".
func (u SearchUnit) String() string {
	return fmt.Sprintf("%s/%d", u.JournalID, u.Year)
}
