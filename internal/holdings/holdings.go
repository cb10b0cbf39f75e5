// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package holdings reads a publisher holdings report and reduces each
// journal title to a HoldingsRow with year-granularity coverage dates.
package holdings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// Column names of the holdings report.
const (
	ColTitleID         = "title_id"
	ColPublicationType = "publication_type"
	ColFirstIssue      = "date_first_issue_online"
	ColLastIssue       = "date_last_issue_online"
)

// JournalType is the publication_type value of rows that are kept.
const JournalType = "Journal"

var requiredColumns = []string{ColTitleID, ColPublicationType, ColFirstIssue, ColLastIssue}

// Options controls how rows are read.
type Options struct {
	// Sheet selects the worksheet of an .xlsx report. Empty means the first.
	Sheet string

	// SkipMalformed records rows with unusable dates in Result.Skipped
	// instead of failing the load.
	SkipMalformed bool

	// Now supplies the current time for the open-ended last year.
	// Defaults to time.Now.
	Now func() time.Time
}

func (o Options) currentYear() int {
	if o.Now != nil {
		return o.Now().Year()
	}
	return time.Now().Year()
}

// Result holds the journal rows of a report in source order.
type Result struct {
	Rows []types.HoldingsRow

	// Skipped lists the errors of rows dropped under SkipMalformed.
	Skipped []error

	// NonJournal counts rows filtered out by publication type.
	NonJournal int
}

// LoadFile reads a holdings report from disk, choosing the reader by file
// extension: .xlsx (Excel), .tsv (tab separated) or anything else as CSV.
// A missing file is an ErrConfiguration.
func LoadFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: opening holdings file: %v", types.ErrConfiguration, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, opts)
	case ".tsv", ".txt":
		return ReadCSV(f, '\t', opts)
	default:
		return ReadCSV(f, ',', opts)
	}
}

// ReadXLSX reads an Excel holdings report.
func ReadXLSX(r io.Reader, opts Options) (Result, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading workbook: %v", types.ErrConfiguration, err)
	}
	defer wb.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return Result{}, fmt.Errorf("%w: workbook has no sheets", types.ErrConfiguration)
		}
		sheet = sheets[0]
	}

	records, err := wb.GetRows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading sheet %q: %v", types.ErrConfiguration, sheet, err)
	}
	if err := dateCellsToText(wb, sheet, records); err != nil {
		return Result{}, err
	}
	return FromRecords(records, opts)
}

// dateCellsToText rewrites numeric cells of the date columns, which GetRows
// returns in their display format, as text FromRecords can take the year
// from. A whole number from 1000 to 9999 is a year; any other number is an
// Excel date serial.
func dateCellsToText(wb *excelize.File, sheet string, records [][]string) error {
	if len(records) == 0 {
		return nil
	}
	var cols []int
	for i, h := range records[0] {
		switch headerName(h) {
		case ColFirstIssue, ColLastIssue:
			cols = append(cols, i)
		}
	}

	date1904 := false
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	for r := 1; r < len(records); r++ {
		for _, c := range cols {
			if c >= len(records[r]) || strings.TrimSpace(records[r][c]) == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("%w: %v", types.ErrDataFormat, err)
			}
			typ, err := wb.GetCellType(sheet, ref)
			if err != nil {
				return fmt.Errorf("%w: reading cell %s: %v", types.ErrDataFormat, ref, err)
			}
			switch typ {
			case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
			default:
				continue
			}

			raw, err := wb.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
			if err != nil {
				return fmt.Errorf("%w: reading cell %s: %v", types.ErrDataFormat, ref, err)
			}
			if typ == excelize.CellTypeDate {
				records[r][c] = raw
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				continue
			}
			if v == float64(int(v)) && v >= 1000 && v <= 9999 {
				records[r][c] = strconv.Itoa(int(v))
				continue
			}
			t, err := excelize.ExcelDateToTime(v, date1904)
			if err != nil {
				return fmt.Errorf("%w: cell %s: %v", types.ErrDataFormat, ref, err)
			}
			records[r][c] = t.Format("2006-01-02")
		}
	}
	return nil
}

// ReadCSV reads a delimited holdings export.
func ReadCSV(r io.Reader, comma rune, opts Options) (Result, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("%w: parsing holdings export: %v", types.ErrDataFormat, err)
	}
	return FromRecords(records, opts)
}

// FromRecords converts a header row plus data rows into HoldingsRows. Only
// rows whose publication_type is "Journal" are kept.
func FromRecords(records [][]string, opts Options) (Result, error) {
	if len(records) == 0 {
		return Result{}, fmt.Errorf("%w: %w: holdings report is empty", types.ErrConfiguration, types.ErrDataFormat)
	}

	cols, err := columnIndex(records[0])
	if err != nil {
		return Result{}, err
	}

	openEnd := opts.currentYear() + 1
	var res Result
	for i, rec := range records[1:] {
		line := i + 2 // 1-based, after the header
		if isBlank(rec) {
			continue
		}
		if cell(rec, cols[ColPublicationType]) != JournalType {
			res.NonJournal++
			continue
		}

		row, err := parseRow(rec, cols, openEnd)
		if err != nil {
			err = fmt.Errorf("row %d: %w", line, err)
			if opts.SkipMalformed && errors.Is(err, types.ErrDataFormat) {
				res.Skipped = append(res.Skipped, err)
				continue
			}
			return Result{}, err
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func parseRow(rec []string, cols map[string]int, openEnd int) (types.HoldingsRow, error) {
	id := cell(rec, cols[ColTitleID])
	if id == "" {
		return types.HoldingsRow{}, fmt.Errorf("%w: empty %s", types.ErrDataFormat, ColTitleID)
	}

	first, err := ExtractYear(cell(rec, cols[ColFirstIssue]))
	if err != nil {
		return types.HoldingsRow{}, fmt.Errorf("journal %s %s: %w", id, ColFirstIssue, err)
	}

	last := openEnd
	if raw := cell(rec, cols[ColLastIssue]); raw != "" {
		last, err = ExtractYear(raw)
		if err != nil {
			return types.HoldingsRow{}, fmt.Errorf("journal %s %s: %w", id, ColLastIssue, err)
		}
	}

	if first > last {
		return types.HoldingsRow{}, fmt.Errorf("%w: journal %s first year %d after last year %d",
			types.ErrDataFormat, id, first, last)
	}
	return types.HoldingsRow{JournalID: id, FirstYear: first, LastYear: last}, nil
}

// ExtractYear returns the year held in the leading 4 characters of a date
// or date-like string: "2004-03" and "2004-03-01" both give 2004.
func ExtractYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, fmt.Errorf("%w: %q is too short for a year", types.ErrDataFormat, s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 0 {
		return 0, fmt.Errorf("%w: %q does not start with a year", types.ErrDataFormat, s)
	}
	return year, nil
}

// columnIndex maps the required column names to their positions. Header
// cells are matched case-insensitively after trimming.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := headerName(h)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: holdings report is missing columns: %s",
			types.ErrConfiguration, types.ErrDataFormat, strings.Join(missing, ", "))
	}
	return idx, nil
}

func headerName(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
