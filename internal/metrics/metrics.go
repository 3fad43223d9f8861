// Registers, for one job run:
//
//	#alphaflow_records_read_total
//	#alphaflow_records_dropped_total{reason}
//	#alphaflow_partials_emitted_total
//	#alphaflow_shuffle_bytes_total{stage}
//	#alphaflow_buckets_written_total
//	#alphaflow_files_written_total
//	#alphaflow_job_duration_seconds
//	#go_* and process_* system metrics
//
// A batch job exits before a scraper sees it, so the registry is written to
// a node-exporter textfile at the end of the run. It can also be served
// over HTTP while the job runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alphaflow/internal/shuffle"
	"alphaflow/processor"
)

const namespace = "alphaflow"

// Registry holds the job counters on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	recordsRead     prometheus.Counter
	dropped         *prometheus.CounterVec
	partialsEmitted prometheus.Counter
	shuffleBytes    *prometheus.CounterVec
	bucketsWritten  prometheus.Counter
	filesWritten    prometheus.Counter
	duration        prometheus.Gauge
}

// New creates a registry whose series carry the job name as a constant label.
func New(job string) *Registry {
	labels := prometheus.Labels{"job_name": job}
	r := &Registry{
		reg: prometheus.NewRegistry(),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_read_total",
			Help: "Number of input records read", ConstLabels: labels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_dropped_total",
			Help: "Number of records that contributed to no bucket", ConstLabels: labels,
		}, []string{"reason"}),
		partialsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "partials_emitted_total",
			Help: "Number of partial aggregates spilled by workers", ConstLabels: labels,
		}),
		shuffleBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "shuffle_bytes_total",
			Help: "Bytes moved through the shuffle", ConstLabels: labels,
		}, []string{"stage"}),
		bucketsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "buckets_written_total",
			Help: "Number of time buckets written", ConstLabels: labels,
		}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_written_total",
			Help: "Number of day files written", ConstLabels: labels,
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "job_duration_seconds",
			Help: "Wall time of the last run", ConstLabels: labels,
		}),
	}
	r.reg.MustRegister(
		r.recordsRead, r.dropped, r.partialsEmitted, r.shuffleBytes,
		r.bucketsWritten, r.filesWritten, r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveWorkers adds the summed worker statistics.
func (r *Registry) ObserveWorkers(s processor.Stats) {
	r.recordsRead.Add(float64(s.Records))
	r.dropped.WithLabelValues("parse_error").Add(float64(s.ParseErrors))
	r.dropped.WithLabelValues("time_range").Add(float64(s.TimeRangeErrors))
	r.dropped.WithLabelValues("invalid_factor").Add(float64(s.InvalidFactors))
	r.partialsEmitted.Add(float64(s.PartialsEmitted))
}

func (r *Registry) ObserveShuffle(s shuffle.Stats) {
	r.shuffleBytes.WithLabelValues("raw").Add(float64(s.RawBytes))
	r.shuffleBytes.WithLabelValues("stored").Add(float64(s.StoredBytes))
}

func (r *Registry) ObserveOutput(buckets, files int) {
	r.bucketsWritten.Add(float64(buckets))
	r.filesWritten.Add(float64(files))
}

func (r *Registry) SetDuration(d time.Duration) {
	r.duration.Set(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
