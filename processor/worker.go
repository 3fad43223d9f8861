package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	appconfig "alphaflow/config"
	"alphaflow/factor"
	"alphaflow/internal/hashtable"
	"alphaflow/internal/timecode"
	"alphaflow/logger"
	"alphaflow/models"
	"alphaflow/reader"
)

// noInstrument marks a free slot in the instrument state table. Parsed
// codes are never negative.
const noInstrument int32 = -1

// noKey marks a free slot in the aggregation table. Keys use 26 bits.
const noKey = timecode.Key(^uint32(0))

// ctxCheckEvery is how many records pass between context checks in Run.
const ctxCheckEvery = 4096

// Emitter receives the partial aggregates a worker spills.
type Emitter interface {
	Emit(kp *models.KeyedPartial) error
}

// RecordSource yields raw records until io.EOF.
type RecordSource interface {
	Next() ([]byte, error)
}

// Kernel computes the factor vector for cur. prev is nil when the
// instrument has not been seen before.
type Kernel func(cur, prev *models.Snapshot, out *models.Vector)

// WorkerConfig holds the table sizes of a worker.
type WorkerConfig struct {
	FlushThreshold      int
	AggregationCapacity int
	InstrumentCapacity  int
}

// NewWorkerConfig takes the mapper section of the job configuration.
func NewWorkerConfig(cfg *appconfig.Config) WorkerConfig {
	return WorkerConfig{
		FlushThreshold:      cfg.Mapper.FlushThreshold,
		AggregationCapacity: cfg.Mapper.AggregationCapacity,
		InstrumentCapacity:  cfg.Mapper.InstrumentCapacity,
	}
}

// Worker turns one split of records into partial aggregates. It owns all of
// its state and must be driven from a single goroutine.
type Worker struct {
	id     int
	cfg    WorkerConfig
	emit   Emitter
	kernel Kernel
	log    *logger.Log

	state *hashtable.Table[int32, models.Snapshot]
	agg   *hashtable.Table[timecode.Key, models.Partial]

	cur     models.Snapshot
	vec     models.Vector
	scratch models.KeyedPartial

	stats  Stats
	closed bool
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithKernel replaces the factor computation.
func WithKernel(k Kernel) WorkerOption {
	return func(w *Worker) { w.kernel = k }
}

func NewWorker(id int, cfg WorkerConfig, emit Emitter, opts ...WorkerOption) *Worker {
	w := &Worker{
		id:     id,
		cfg:    cfg,
		emit:   emit,
		kernel: factor.Compute,
		log:    logger.GetLogger(),
		state:  hashtable.New[int32, models.Snapshot](cfg.InstrumentCapacity, noInstrument),
		agg:    hashtable.New[timecode.Key, models.Partial](cfg.AggregationCapacity, noKey),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process handles a single record. Malformed records, dates outside the
// key range and non-finite factor vectors are counted and skipped; only
// spill failures and a full instrument table are returned as errors.
func (w *Worker) Process(record []byte) error {
	w.stats.Records++

	w.cur.Reset()
	if !reader.ParseSnapshot(record, &w.cur) {
		w.stats.ParseErrors++
		return nil
	}

	key, err := timecode.Encode(w.cur.TradingDay, w.cur.TradeTime)
	if err != nil {
		w.stats.TimeRangeErrors++
		return nil
	}

	prev := w.state.Get(w.cur.Code)
	w.kernel(&w.cur, prev, &w.vec)

	if w.vec.HasInvalid() {
		w.stats.InvalidFactors++
	} else {
		bucket, _, err := w.agg.Put(key)
		if err != nil {
			return fmt.Errorf("worker %d: aggregation table: %w", w.id, err)
		}
		bucket.Add(&w.vec)
		w.stats.Aggregated++

		if w.agg.Len() >= w.cfg.FlushThreshold {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}

	return w.remember(prev)
}

// remember stores the current snapshot as the instrument's latest state.
func (w *Worker) remember(prev *models.Snapshot) error {
	if prev != nil {
		*prev = w.cur
		return nil
	}
	slot, _, err := w.state.Put(w.cur.Code)
	if err != nil {
		return fmt.Errorf("worker %d: instrument table holds %d codes: %w", w.id, w.state.Cap(), err)
	}
	*slot = w.cur
	return nil
}

// flush spills every bucket to the emitter and empties the table.
func (w *Worker) flush() error {
	n := w.agg.Len()
	if n == 0 {
		return nil
	}

	var emitErr error
	w.agg.Range(func(k timecode.Key, p *models.Partial) bool {
		w.scratch.Key = k
		w.scratch.Partial = *p
		if err := w.emit.Emit(&w.scratch); err != nil {
			emitErr = err
			return false
		}
		return true
	})
	if emitErr != nil {
		return fmt.Errorf("worker %d: spill failed: %w", w.id, emitErr)
	}

	w.agg.Clear()
	w.stats.Flushes++
	w.stats.PartialsEmitted += int64(n)

	w.log.WithComponent("mapper").WithFields(logger.Fields{
		"worker_id": w.id,
		"buckets":   n,
		"records":   w.stats.Records,
	}).Debug("aggregation cache flushed")
	return nil
}

// Run processes every record of src and performs the final flush. The
// context is consulted between batches of records only.
func (w *Worker) Run(ctx context.Context, src RecordSource) error {
	if w.closed {
		return fmt.Errorf("worker %d already closed", w.id)
	}
	start := time.Now()
	log := w.log.WithComponent("mapper").WithFields(logger.Fields{"worker_id": w.id})
	log.Debug("worker started")

	var n int
	for {
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
		if err := w.Process(record); err != nil {
			return err
		}
		if n++; n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.RecordProgress("records_read", ctxCheckEvery)
		}
	}
	logger.RecordProgress("records_read", int64(n%ctxCheckEvery))

	if err := w.Close(); err != nil {
		return err
	}
	logger.LogPerformanceEntry(log, "mapper", "process_split", time.Since(start), w.stats.Fields())
	return nil
}

// Close flushes the remaining buckets. The worker cannot be reused.
func (w *Worker) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.flush()
}

// Stats returns the worker's counters.
func (w *Worker) Stats() Stats { return w.stats }

// Previous returns the last snapshot seen for code.
func (w *Worker) Previous(code int32) (models.Snapshot, bool) {
	if p := w.state.Get(code); p != nil {
		return *p, true
	}
	return models.Snapshot{}, false
}

// Pending reports how many buckets are waiting for the next flush.
func (w *Worker) Pending() int { return w.agg.Len() }
