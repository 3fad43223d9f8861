package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaflow/internal/shuffle"
	"alphaflow/processor"
)

func TestObserveWorkers(t *testing.T) {
	r := New("test-job")
	r.ObserveWorkers(processor.Stats{Records: 10, ParseErrors: 2, TimeRangeErrors: 1, InvalidFactors: 3, PartialsEmitted: 4})
	r.ObserveWorkers(processor.Stats{Records: 5})

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "reason" {
					name += ":" + lp.GetValue()
				}
			}
			if c := m.GetCounter(); c != nil {
				got[name] = c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(15), got["alphaflow_records_read_total"])
	assert.Equal(t, float64(2), got["alphaflow_records_dropped_total:parse_error"])
	assert.Equal(t, float64(1), got["alphaflow_records_dropped_total:time_range"])
	assert.Equal(t, float64(3), got["alphaflow_records_dropped_total:invalid_factor"])
	assert.Equal(t, float64(4), got["alphaflow_partials_emitted_total"])
}

func TestWriteTextfile(t *testing.T) {
	r := New("test-job")
	r.ObserveShuffle(shuffle.Stats{RawBytes: 880, StoredBytes: 120})
	r.ObserveOutput(7, 2)
	r.SetDuration(1500 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "alphaflow.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `alphaflow_buckets_written_total{job_name="test-job"} 7`))
	assert.True(t, strings.Contains(text, `alphaflow_files_written_total{job_name="test-job"} 2`))
	assert.True(t, strings.Contains(text, `alphaflow_shuffle_bytes_total{job_name="test-job",stage="raw"} 880`))
	assert.True(t, strings.Contains(text, `alphaflow_job_duration_seconds{job_name="test-job"} 1.5`))
}
