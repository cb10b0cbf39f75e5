// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts harvest activity in a Prometheus registry. A batch
// run has no scrape endpoint, so the registry is written to a file in the
// node-exporter textfile format when the run ends.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons used as the units_failed_total label.
const (
	ReasonTimeout = "timeout"
	ReasonFetch   = "fetch"
)

// Recorder holds the harvest collectors. A nil *Recorder records nothing.
type Recorder struct {
	Registry *prometheus.Registry

	pagesFetched   prometheus.Counter
	urisWritten    prometheus.Counter
	unitsCompleted prometheus.Counter
	unitsFailed    *prometheus.CounterVec
	lastCompletion prometheus.Gauge
}

// New registers the harvest collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sd_oa_pages_fetched_total",
			Help: "Search result pages fetched.",
		}),
		urisWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sd_oa_uris_written_total",
			Help: "Article URIs appended to the output file.",
		}),
		unitsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sd_oa_units_completed_total",
			Help: "Journal-year search units harvested and checkpointed.",
		}),
		unitsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sd_oa_units_failed_total",
			Help: "Journal-year search units aborted, by reason.",
		}, []string{"reason"}),
		lastCompletion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sd_oa_last_completion_timestamp_seconds",
			Help: "Unix time of the most recent checkpointed unit.",
		}),
	}
	r.Registry.MustRegister(r.pagesFetched, r.urisWritten, r.unitsCompleted, r.unitsFailed, r.lastCompletion)
	return r
}

// PageFetched counts one page carrying n URIs.
func (r *Recorder) PageFetched(n int) {
	if r == nil {
		return
	}
	r.pagesFetched.Inc()
	r.urisWritten.Add(float64(n))
}

// UnitCompleted counts a checkpointed unit.
func (r *Recorder) UnitCompleted(at time.Time) {
	if r == nil {
		return
	}
	r.unitsCompleted.Inc()
	r.lastCompletion.Set(float64(at.Unix()))
}

// UnitFailed counts an aborted unit.
func (r *Recorder) UnitFailed(reason string) {
	if r == nil {
		return
	}
	r.unitsFailed.WithLabelValues(reason).Inc()
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
