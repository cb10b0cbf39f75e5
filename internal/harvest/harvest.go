// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives the paginated search for each planned unit,
// appends the article URIs it finds, and checkpoints the unit once every
// page has been fetched and written.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/sd-oa-harvest/internal/metrics"
	"github.com/pdiddy/sd-oa-harvest/internal/planner"
	"github.com/pdiddy/sd-oa-harvest/internal/scidir"
	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// PageFetcher issues search requests. *scidir.Client implements it.
type PageFetcher interface {
	FirstPageURL(issn string, year int) string
	Fetch(ctx context.Context, url string) (scidir.Page, error)
}

// URISink receives the URIs of each page in arrival order.
type URISink interface {
	Append(uris []string) error
}

// Checkpointer records units as they start and complete.
type Checkpointer interface {
	MarkStarted(ctx context.Context, journalID string, year int) error
	MarkComplete(ctx context.Context, journalID string, year int) error
}

// Harvester harvests search units one at a time.
type Harvester struct {
	Fetcher  PageFetcher
	Sink     URISink
	Progress Checkpointer
	Logger   *zap.Logger
	Metrics  *metrics.Recorder

	// PageDelay is slept between consecutive page requests of a unit.
	PageDelay time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// UnitResult counts the work done for one unit.
type UnitResult struct {
	Pages int
	URIs  int
}

// HarvestUnit marks unit started, fetches every page, appending URIs as each
// page arrives, and marks the unit complete after the last page.
//
// A fetch error aborts the unit, which stays pending. URIs from pages
// fetched before the failure stay in the sink and are written again when
// the unit is retried by a later run.
func (h *Harvester) HarvestUnit(ctx context.Context, unit types.SearchUnit) (UnitResult, error) {
	log := h.logger().With(zap.String("issn", unit.JournalID), zap.Int("year", unit.Year))
	log.Info("starting search")

	var res UnitResult
	if err := h.Progress.MarkStarted(ctx, unit.JournalID, unit.Year); err != nil {
		return res, fmt.Errorf("recording start of unit %s: %w", unit, err)
	}

	next := h.Fetcher.FirstPageURL(unit.JournalID, unit.Year)
	seen := map[string]bool{}
	for page := 1; next != ""; page++ {
		if seen[next] {
			return res, fmt.Errorf("%w: unit %s page %d: next link repeats %s",
				types.ErrTransientFetch, unit, page, next)
		}
		seen[next] = true

		if page > 1 {
			if err := h.sleep(ctx); err != nil {
				return res, err
			}
		}

		log.Info("fetching page", zap.Int("page", page), zap.String("url", next))
		p, err := h.Fetcher.Fetch(ctx, next)
		if err != nil {
			return res, fmt.Errorf("unit %s page %d: %w", unit, page, err)
		}
		res.Pages++

		if p.ItemsPerPage <= 0 {
			h.Metrics.PageFetched(0)
			log.Info("no results in this response, moving on", zap.Int("page", page))
			break
		}

		if err := h.Sink.Append(p.URIs); err != nil {
			return res, fmt.Errorf("unit %s page %d: %w", unit, page, err)
		}
		res.URIs += len(p.URIs)
		h.Metrics.PageFetched(len(p.URIs))
		log.Info("appended open-access article URIs", zap.Int("page", page), zap.Int("uris", len(p.URIs)))

		next = p.Next
		if next == "" {
			log.Info("no next url, moving on", zap.Int("page", page))
		}
	}

	if err := h.Progress.MarkComplete(ctx, unit.JournalID, unit.Year); err != nil {
		return res, fmt.Errorf("checkpointing unit %s: %w", unit, err)
	}
	h.Metrics.UnitCompleted(h.now())
	log.Info("unit complete", zap.Int("pages", res.Pages), zap.Int("uris", res.URIs))
	return res, nil
}

// UnitFailure records a unit aborted by a transient error.
type UnitFailure struct {
	Unit types.SearchUnit
	Err  error
}

// Summary holds counts from a harvest run.
type Summary struct {
	Journals       int
	UnitsPlanned   int
	UnitsCompleted int
	Pages          int
	URIs           int
	Failures       []UnitFailure

	// UnitsDeferred counts the units left unattempted because an earlier
	// year of the same journal failed.
	UnitsDeferred int
}

// UnitsFailed returns the number of aborted units.
func (s Summary) UnitsFailed() int { return len(s.Failures) }

// HasFailures reports whether any unit was aborted.
func (s Summary) HasFailures() bool { return len(s.Failures) > 0 }

// Run harvests every unit of plans in order. A transient failure is logged
// and counted, the journal's older years are deferred to the next run, and
// the run moves on to the next journal; the failed unit stays pending so
// the next run resumes there. Persistence errors and cancellation stop the
// run and are returned with the summary so far.
func (h *Harvester) Run(ctx context.Context, plans []planner.JournalPlan) (Summary, error) {
	log := h.logger()
	sum := Summary{Journals: len(plans), UnitsPlanned: planner.TotalUnits(plans)}

	for _, plan := range plans {
		jlog := log.With(zap.String("issn", plan.Row.JournalID))
		jlog.Info("journal",
			zap.Int("first_year", plan.Row.FirstYear),
			zap.Int("last_year", plan.Row.LastYear),
			zap.Ints("years", plan.Years))
		if plan.StoppedAt != 0 {
			jlog.Info("year already completed, older years planned only where a run left them pending", zap.Int("year", plan.StoppedAt))
		}

		units := plan.Units()
		for i, unit := range units {
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			res, err := h.HarvestUnit(ctx, unit)
			sum.Pages += res.Pages
			sum.URIs += res.URIs
			if err != nil {
				if types.IsFatal(err) {
					return sum, err
				}
				h.Metrics.UnitFailed(failureReason(err))
				deferred := len(units) - i - 1
				jlog.Warn("unit failed, journal resumes here on next run",
					zap.Int("year", unit.Year), zap.Int("deferred", deferred), zap.Error(err))
				sum.Failures = append(sum.Failures, UnitFailure{Unit: unit, Err: err})
				sum.UnitsDeferred += deferred
				break
			}
			sum.UnitsCompleted++
		}
	}

	log.Info("harvest finished",
		zap.Int("journals", sum.Journals),
		zap.Int("units_planned", sum.UnitsPlanned),
		zap.Int("units_completed", sum.UnitsCompleted),
		zap.Int("units_failed", sum.UnitsFailed()),
		zap.Int("units_deferred", sum.UnitsDeferred),
		zap.Int("pages", sum.Pages),
		zap.Int("uris", sum.URIs))
	return sum, nil
}

func failureReason(err error) string {
	if errors.Is(err, types.ErrRequestTimeout) {
		return metrics.ReasonTimeout
	}
	return metrics.ReasonFetch
}

func (h *Harvester) sleep(ctx context.Context) error {
	if h.PageDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(h.PageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (h *Harvester) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Harvester) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
