// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.PageFetched(2)
	r.PageFetched(1)
	r.UnitCompleted(time.Unix(1700000000, 0))
	r.UnitFailed(ReasonTimeout)
	r.UnitFailed(ReasonFetch)
	r.UnitFailed(ReasonFetch)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.pagesFetched))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.urisWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unitsCompleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.unitsFailed.WithLabelValues(ReasonFetch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unitsFailed.WithLabelValues(ReasonTimeout)))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastCompletion))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.PageFetched(1)
	r.UnitCompleted(time.Now())
	r.UnitFailed(ReasonFetch)
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.PageFetched(5)

	path := filepath.Join(t.TempDir(), "sd_oa.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sd_oa_uris_written_total 5")
	assert.Contains(t, string(data), "# TYPE sd_oa_pages_fetched_total counter")
}
