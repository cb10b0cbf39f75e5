// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/sd-oa-harvest/internal/metrics"
	"github.com/pdiddy/sd-oa-harvest/internal/planner"
	"github.com/pdiddy/sd-oa-harvest/internal/progress"
	"github.com/pdiddy/sd-oa-harvest/internal/scidir"
	"github.com/pdiddy/sd-oa-harvest/internal/sink"
	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// --- test doubles ---

// events records sink and checkpoint calls in the order they happen.
type events struct {
	log []string
}

type scriptedFetcher struct {
	ev    *events
	pages map[string]scidir.Page
	errs  map[string]error
	calls []string
}

func (f *scriptedFetcher) FirstPageURL(issn string, year int) string {
	return fmt.Sprintf("first/%s/%d", issn, year)
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (scidir.Page, error) {
	f.calls = append(f.calls, url)
	f.ev.log = append(f.ev.log, "fetch "+url)
	if err, ok := f.errs[url]; ok {
		return scidir.Page{}, err
	}
	p, ok := f.pages[url]
	if !ok {
		return scidir.Page{}, fmt.Errorf("%w: unexpected url %s", types.ErrTransientFetch, url)
	}
	return p, nil
}

type memSink struct {
	ev   *events
	uris []string
	err  error
}

func (s *memSink) Append(uris []string) error {
	if s.err != nil {
		return s.err
	}
	s.ev.log = append(s.ev.log, fmt.Sprintf("append %d", len(uris)))
	s.uris = append(s.uris, uris...)
	return nil
}

type memCheckpoint struct {
	ev       *events
	started  []types.SearchUnit
	marks    []types.SearchUnit
	startErr error
	err      error
}

func (c *memCheckpoint) MarkStarted(_ context.Context, id string, year int) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.ev.log = append(c.ev.log, fmt.Sprintf("start %s/%d", id, year))
	c.started = append(c.started, types.SearchUnit{JournalID: id, Year: year})
	return nil
}

func (c *memCheckpoint) MarkComplete(_ context.Context, id string, year int) error {
	if c.err != nil {
		return c.err
	}
	c.ev.log = append(c.ev.log, fmt.Sprintf("mark %s/%d", id, year))
	c.marks = append(c.marks, types.SearchUnit{JournalID: id, Year: year})
	return nil
}

func newHarvester(pages map[string]scidir.Page) (*Harvester, *scriptedFetcher, *memSink, *memCheckpoint, *events) {
	ev := &events{}
	f := &scriptedFetcher{ev: ev, pages: pages, errs: map[string]error{}}
	s := &memSink{ev: ev}
	c := &memCheckpoint{ev: ev}
	return &Harvester{Fetcher: f, Sink: s, Progress: c, Logger: zap.NewNop()}, f, s, c, ev
}

var unit = types.SearchUnit{JournalID: "0001-0001", Year: 2019}

// --- HarvestUnit ---

func TestHarvestUnitTwoPages(t *testing.T) {
	h, f, s, c, ev := newHarvester(map[string]scidir.Page{
		"first/0001-0001/2019": {ItemsPerPage: 2, URIs: []string{"u1", "u2"}, Next: "page2"},
		"page2":                {ItemsPerPage: 1, URIs: []string{"u3"}},
	})

	res, err := h.HarvestUnit(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, UnitResult{Pages: 2, URIs: 3}, res)
	assert.Equal(t, []string{"u1", "u2", "u3"}, s.uris)
	assert.Equal(t, []string{"first/0001-0001/2019", "page2"}, f.calls)
	assert.Equal(t, []types.SearchUnit{unit}, c.marks, "marked exactly once")
	assert.Equal(t, []string{
		"start 0001-0001/2019",
		"fetch first/0001-0001/2019",
		"append 2",
		"fetch page2",
		"append 1",
		"mark 0001-0001/2019",
	}, ev.log, "unit is marked only after the last page is written")
}

func TestHarvestUnitZeroResults(t *testing.T) {
	h, f, s, c, _ := newHarvester(map[string]scidir.Page{
		// A next link on an empty page is ignored.
		"first/0001-0001/2019": {ItemsPerPage: 0, Next: "never"},
	})

	res, err := h.HarvestUnit(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, UnitResult{Pages: 1}, res)
	assert.Empty(t, s.uris)
	assert.Len(t, f.calls, 1)
	assert.Equal(t, []types.SearchUnit{unit}, c.marks)
}

func TestHarvestUnitFetchFailureLeavesUnitIncomplete(t *testing.T) {
	h, f, s, c, _ := newHarvester(map[string]scidir.Page{
		"first/0001-0001/2019": {ItemsPerPage: 2, URIs: []string{"u1", "u2"}, Next: "page2"},
	})
	f.errs["page2"] = fmt.Errorf("%w: HTTP 500", types.ErrTransientFetch)

	res, err := h.HarvestUnit(context.Background(), unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransientFetch)
	assert.Contains(t, err.Error(), "page 2")

	// Page 1 URIs stay written; the unit is left pending, not complete.
	assert.Equal(t, []string{"u1", "u2"}, s.uris)
	assert.Equal(t, 2, res.URIs)
	assert.Equal(t, []types.SearchUnit{unit}, c.started)
	assert.Empty(t, c.marks)
}

func TestHarvestUnitStartFailureIsFatal(t *testing.T) {
	h, f, _, c, _ := newHarvester(map[string]scidir.Page{})
	c.startErr = fmt.Errorf("%w: read-only filesystem", types.ErrPersistence)

	_, err := h.HarvestUnit(context.Background(), unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.True(t, types.IsFatal(err))
	assert.Empty(t, f.calls, "nothing is fetched for an unrecorded unit")
}

func TestHarvestUnitSinkFailureIsFatal(t *testing.T) {
	h, _, s, c, _ := newHarvester(map[string]scidir.Page{
		"first/0001-0001/2019": {ItemsPerPage: 1, URIs: []string{"u1"}},
	})
	s.err = fmt.Errorf("%w: disk full", types.ErrPersistence)

	_, err := h.HarvestUnit(context.Background(), unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.True(t, types.IsFatal(err))
	assert.Empty(t, c.marks)
}

func TestHarvestUnitRepeatedNextLink(t *testing.T) {
	h, _, _, c, _ := newHarvester(map[string]scidir.Page{
		"first/0001-0001/2019": {ItemsPerPage: 1, URIs: []string{"u1"}, Next: "loop"},
		"loop":                 {ItemsPerPage: 1, URIs: []string{"u2"}, Next: "loop"},
	})

	_, err := h.HarvestUnit(context.Background(), unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransientFetch)
	assert.Empty(t, c.marks)
}

func TestHarvestUnitLogsPerPage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h, _, _, _, _ := newHarvester(map[string]scidir.Page{
		"first/0001-0001/2019": {ItemsPerPage: 1, URIs: []string{"u1"}},
	})
	h.Logger = zap.New(core)

	_, err := h.HarvestUnit(context.Background(), unit)
	require.NoError(t, err)

	fetches := logs.FilterMessage("fetching page").All()
	require.Len(t, fetches, 1)
	fields := fetches[0].ContextMap()
	assert.Equal(t, "0001-0001", fields["issn"])
	assert.Equal(t, int64(2019), fields["year"])
	assert.Equal(t, 1, logs.FilterMessage("no next url, moving on").Len())
	assert.Equal(t, 1, logs.FilterMessage("unit complete").Len())
}

// --- Run ---

func TestRunDefersJournalAfterTransientFailure(t *testing.T) {
	h, f, s, c, _ := newHarvester(map[string]scidir.Page{
		"first/a/2002": {ItemsPerPage: 1, URIs: []string{"a2002"}},
		"first/a/2000": {ItemsPerPage: 1, URIs: []string{"a2000"}},
		"first/b/2011": {ItemsPerPage: 0},
	})
	f.errs["first/a/2001"] = fmt.Errorf("%w: %w: slow", types.ErrTransientFetch, types.ErrRequestTimeout)
	h.Metrics = metrics.New()

	plans := []planner.JournalPlan{
		{Row: types.HoldingsRow{JournalID: "a", FirstYear: 1999, LastYear: 2003}, Years: []int{2002, 2001, 2000}},
		{Row: types.HoldingsRow{JournalID: "b", FirstYear: 2010, LastYear: 2013}, Years: []int{2011}, StoppedAt: 2012},
	}

	sum, err := h.Run(context.Background(), plans)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Journals)
	assert.Equal(t, 4, sum.UnitsPlanned)
	assert.Equal(t, 2, sum.UnitsCompleted)
	assert.Equal(t, 1, sum.UnitsFailed())
	assert.Equal(t, 1, sum.UnitsDeferred)
	assert.True(t, sum.HasFailures())
	assert.Equal(t, types.SearchUnit{JournalID: "a", Year: 2001}, sum.Failures[0].Unit)

	// a/2000 is never attempted; journal b still runs.
	assert.NotContains(t, f.calls, "first/a/2000")
	assert.Contains(t, f.calls, "first/b/2011")
	assert.Equal(t, []string{"a2002"}, s.uris)
	assert.Equal(t, []types.SearchUnit{
		{JournalID: "a", Year: 2002},
		{JournalID: "b", Year: 2011},
	}, c.marks)
	assert.Contains(t, c.started, types.SearchUnit{JournalID: "a", Year: 2001})
}

func TestRunStopsOnPersistenceError(t *testing.T) {
	h, f, _, c, _ := newHarvester(map[string]scidir.Page{
		"first/a/2002": {ItemsPerPage: 0},
		"first/a/2001": {ItemsPerPage: 0},
	})
	c.err = fmt.Errorf("%w: read-only filesystem", types.ErrPersistence)

	plans := []planner.JournalPlan{
		{Row: types.HoldingsRow{JournalID: "a", FirstYear: 2000, LastYear: 2003}, Years: []int{2002, 2001}},
	}
	_, err := h.Run(context.Background(), plans)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.Len(t, f.calls, 1, "no further unit is attempted")
}

func TestRunStopsOnCancellation(t *testing.T) {
	h, f, _, _, _ := newHarvester(map[string]scidir.Page{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plans := []planner.JournalPlan{
		{Row: types.HoldingsRow{JournalID: "a", FirstYear: 2000, LastYear: 2003}, Years: []int{2002, 2001}},
	}
	_, err := h.Run(ctx, plans)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.calls)
}

// --- end to end against an httptest server ---

func TestRunEndToEndResume(t *testing.T) {
	failYear := "2001"
	var srvURL string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Query().Get("start") == "1":
			fmt.Fprint(w, `{"search-results": {"opensearch:itemsPerPage": "1",
				"entry": [{"prism:url": "https://x/2002-b"}],
				"link": [{"@ref": "self", "@href": "s"}]}}`)
		case strings.HasSuffix(q, "IS 2002"):
			fmt.Fprintf(w, `{"search-results": {"opensearch:itemsPerPage": "1",
				"entry": [{"prism:url": "https://x/2002-a"}],
				"link": [{"@ref": "self", "@href": "s"}, {"@ref": "next", "@href": "%s/search?start=1"}]}}`, srvURL)
		case strings.HasSuffix(q, "IS "+failYear):
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			fmt.Fprint(w, `{"search-results": {"opensearch:itemsPerPage": "0", "entry": [{"error": "Result set was empty"}]}}`)
		}
	}))
	defer ts.Close()
	srvURL = ts.URL

	dir := t.TempDir()
	out := filepath.Join(dir, "oa_article_urls.txt")
	hist := filepath.Join(dir, "history.json")
	rows := []types.HoldingsRow{{JournalID: "0001-0001", FirstYear: 1999, LastYear: 2003}}

	run := func() Summary {
		store, err := progress.OpenFile(hist)
		require.NoError(t, err)
		fs, err := sink.Open(out)
		require.NoError(t, err)
		defer fs.Close()

		h := &Harvester{
			Fetcher:  &scidir.Client{HTTP: ts.Client(), APIKey: "k", BaseURL: ts.URL + "/search?query="},
			Sink:     fs,
			Progress: store,
			Logger:   zap.NewNop(),
		}
		sum, err := h.Run(context.Background(), planner.Plan(rows, store))
		require.NoError(t, err)
		return sum
	}

	// First run: 2002 (two pages) completes, 2001 fails, 2000 is deferred.
	sum := run()
	assert.Equal(t, 3, sum.UnitsPlanned)
	assert.Equal(t, 1, sum.UnitsCompleted)
	assert.Equal(t, 1, sum.UnitsFailed())
	assert.Equal(t, 1, sum.UnitsDeferred)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "https://x/2002-a\nhttps://x/2002-b\n", string(data))

	store, err := progress.OpenFile(hist)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"0001-0001": {2002}}, store.Snapshot())
	assert.Equal(t, map[string][]int{"0001-0001": {2001}}, store.Pending())

	// Second run: 2002 is complete, but the scan resumes at the pending
	// 2001 and carries on to 2000.
	failYear = "none"
	sum = run()
	assert.Equal(t, 2, sum.UnitsPlanned)
	assert.Equal(t, 2, sum.UnitsCompleted)
	assert.False(t, sum.HasFailures())

	store, err = progress.OpenFile(hist)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"0001-0001": {2002, 2001, 2000}}, store.Snapshot())
	assert.Empty(t, store.Pending())

	// Third run: nothing left to plan.
	sum = run()
	assert.Equal(t, 0, sum.UnitsPlanned)

	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "https://x/2002-a\nhttps://x/2002-b\n", string(data))
}
