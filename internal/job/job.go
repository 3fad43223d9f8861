// Package job drives one batch run: it plans input splits, maps each split
// with a fresh worker, shuffles the partial aggregates to reducers by day
// and writes the finalized buckets into per-day files.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appconfig "alphaflow/config"
	"alphaflow/internal/metrics"
	"alphaflow/internal/shuffle"
	"alphaflow/logger"
	"alphaflow/processor"
	"alphaflow/reader"
	"alphaflow/writer"
)

// ErrNoInput is returned in production-like environments when discovery
// finds nothing to process.
var ErrNoInput = errors.New("no input files found")

// Uploader publishes finished output files.
type Uploader interface {
	Upload(ctx context.Context, files []string) error
}

// Summary describes a finished run.
type Summary struct {
	JobID    string
	Splits   int
	Stats    processor.Stats
	Shuffle  shuffle.Stats
	Buckets  int
	Files    []string
	Uploaded int
	Duration time.Duration
}

func (s *Summary) fields() logger.Fields {
	f := s.Stats.Fields()
	f["job_id"] = s.JobID
	f["splits"] = s.Splits
	f["dropped"] = s.Stats.Dropped()
	f["buckets_written"] = s.Buckets
	f["files_written"] = len(s.Files)
	f["files_uploaded"] = s.Uploaded
	f["shuffle_raw_bytes"] = s.Shuffle.RawBytes
	f["shuffle_stored_bytes"] = s.Shuffle.StoredBytes
	f["duration"] = s.Duration.String()
	return f
}

type Runner struct {
	cfg        *appconfig.Config
	id         string
	log        *logger.Log
	workerOpts []processor.WorkerOption
	uploader   Uploader
}

type Option func(*Runner)

// WithWorkerOptions passes options to every worker.
func WithWorkerOptions(opts ...processor.WorkerOption) Option {
	return func(r *Runner) { r.workerOpts = append(r.workerOpts, opts...) }
}

// WithUploader replaces the S3 uploader built from the storage config.
func WithUploader(u Uploader) Option {
	return func(r *Runner) { r.uploader = u }
}

func New(cfg *appconfig.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg: cfg,
		id:  uuid.New().String(),
		log: logger.GetLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ID returns the identifier attached to this run's logs and uploads.
func (r *Runner) ID() string { return r.id }

// Run executes the job. Any I/O failure aborts the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	log := r.log.WithComponent("job").WithFields(logger.Fields{
		"job_id":   r.id,
		"job_name": r.cfg.Job.Name,
		"version":  r.cfg.Job.Version,
	})
	sum := &Summary{JobID: r.id}

	reg := metrics.New(r.cfg.Job.Name)
	if r.cfg.Metrics.Listen != "" {
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := reg.Serve(serveCtx, r.cfg.Metrics.Listen); err != nil {
				log.WithError(err).Warn("metrics server failed")
			}
		}()
	}

	splits, err := r.plan()
	if err != nil {
		return nil, err
	}
	sum.Splits = len(splits)
	if len(splits) == 0 {
		env := appconfig.AppEnvironment()
		if appconfig.IsProductionLike(env) {
			return nil, ErrNoInput
		}
		log.WithFields(logger.Fields{"environment": env}).Warn("no input files found")
	}

	if err := r.prepareOutput(); err != nil {
		return nil, err
	}

	sh, err := shuffle.New(shuffle.Options{
		Partitions:   r.cfg.Job.Reducers,
		Compression:  r.cfg.Shuffle.Compression,
		SegmentBytes: r.cfg.Shuffle.SegmentBytes,
		SpillDir:     r.cfg.Shuffle.SpillDir,
		Combine:      processor.Combine,
		Partition:    processor.Partition,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sh.Cleanup(); err != nil {
			log.WithError(err).Warn("failed to remove spilled segments")
		}
	}()

	log.WithFields(logger.Fields{
		"splits":   len(splits),
		"workers":  r.cfg.Job.Workers,
		"reducers": r.cfg.Job.Reducers,
	}).Info("job started")

	if sum.Stats, err = r.runMappers(ctx, splits, sh); err != nil {
		return nil, err
	}
	sum.Shuffle = sh.Stats()
	logger.LogDataFlowEntry(log, "mapper", "shuffle", sum.Shuffle.Frames, "partials")

	dw, err := writer.New(r.cfg)
	if err != nil {
		return nil, err
	}
	sum.Buckets, err = r.runReducers(ctx, sh, dw)
	files, closeErr := dw.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	sum.Files = files
	logger.LogDataFlowEntry(log, "reducer", "day_writer", int64(sum.Buckets), "buckets")

	dataFiles, err := writer.NewDataFiles(files, dw.Rows)
	if err != nil {
		return nil, err
	}
	if _, err := writer.WriteManifest(r.cfg.Output.Dir, writer.Manifest{
		JobID:     r.id,
		JobName:   r.cfg.Job.Name,
		Version:   r.cfg.Job.Version,
		Format:    r.cfg.Output.Format,
		CreatedAt: time.Now().UTC(),
		Files:     dataFiles,
	}); err != nil {
		return nil, err
	}

	if r.cfg.Storage.S3.Enabled && len(files) > 0 {
		if err := r.upload(ctx, files); err != nil {
			return nil, err
		}
		sum.Uploaded = len(files)
	}

	sum.Duration = time.Since(start)
	reg.ObserveWorkers(sum.Stats)
	reg.ObserveShuffle(sum.Shuffle)
	reg.ObserveOutput(sum.Buckets, len(sum.Files))
	reg.SetDuration(sum.Duration)
	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := reg.WriteTextfile(path); err != nil {
			log.WithError(err).Warn("failed to write metrics textfile")
		}
	}
	metricFields := logger.Fields{"job_name": r.cfg.Job.Name}
	sum.Stats.Report(r.log, "job", metricFields)
	r.log.LogMetric("job", "buckets_written", sum.Buckets, "counter", metricFields)
	r.log.LogMetric("job", "duration", sum.Duration.Milliseconds(), "duration", metricFields)

	log.WithFields(sum.fields()).Info("job finished")
	return sum, nil
}

func (r *Runner) plan() ([]reader.Split, error) {
	if path := r.cfg.Input.SplitManifest; path != "" {
		manifest, err := appconfig.LoadSplitManifest(path)
		if err != nil {
			return nil, err
		}
		return reader.SplitsFromGroups(manifest.Groups())
	}
	files, err := reader.Discover(r.cfg.Input.Paths, r.cfg.Input.Recursive)
	if err != nil {
		return nil, err
	}
	return reader.PlanSplits(files, r.cfg.Input.MinSplitBytes, r.cfg.Input.MaxSplitBytes)
}

func (r *Runner) prepareOutput() error {
	dir := r.cfg.Output.Dir
	if r.cfg.Output.Overwrite {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear output directory: %w", err)
		}
	} else if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return fmt.Errorf("output directory %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// runMappers processes every split with its own worker. It returns only
// after every worker has sealed its map output.
func (r *Runner) runMappers(ctx context.Context, splits []reader.Split, sh *shuffle.Shuffle) (processor.Stats, error) {
	wcfg := processor.NewWorkerConfig(r.cfg)
	perSplit := make([]processor.Stats, len(splits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Job.Workers)
	for i, split := range splits {
		g.Go(func() error {
			out := sh.NewMapOutput()
			w := processor.NewWorker(split.ID, wcfg, out, r.workerOpts...)
			src := reader.OpenSplit(split, r.cfg.Mapper.ReadBufferBytes)
			defer src.Close()

			if err := w.Run(gctx, src); err != nil {
				return fmt.Errorf("split %d: %w", split.ID, err)
			}
			perSplit[i] = w.Stats()
			return out.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return processor.Stats{}, err
	}

	var total processor.Stats
	for _, s := range perSplit {
		total.Add(s)
	}
	return total, nil
}

// runReducers finalizes each partition on its own goroutine.
func (r *Runner) runReducers(ctx context.Context, sh *shuffle.Shuffle, sink processor.RecordSink) (int, error) {
	counts := make([]int, sh.Partitions())

	g, gctx := errgroup.WithContext(ctx)
	for p := range counts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			batch, err := sh.Partition(p)
			if err != nil {
				return err
			}
			red := &processor.Reducer{}
			n, err := red.Reduce(batch, sink)
			if err != nil {
				return fmt.Errorf("reducer %d: %w", p, err)
			}
			counts[p] = n
			logger.LogPerformanceEntry(r.log.WithComponent("reducer"), "reducer", "reduce_partition", time.Since(start), logger.Fields{
				"partition": p,
				"partials":  len(batch),
				"buckets":   n,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (r *Runner) upload(ctx context.Context, files []string) error {
	u := r.uploader
	if u == nil {
		s3u, err := writer.NewUploader(ctx, r.cfg, r.id)
		if err != nil {
			return err
		}
		u = s3u
	}
	return u.Upload(ctx, files)
}
