package processor

import (
	"alphaflow/internal/floattext"
	"alphaflow/internal/timecode"
	"alphaflow/models"
)

// RecordSink consumes finalized buckets.
type RecordSink interface {
	Write(rec *models.OutputRecord) error
}

// MergeAll folds any number of partials into one. The zero Partial is the
// identity, so the result does not depend on grouping.
func MergeAll(parts ...models.Partial) models.Partial {
	var sum models.Partial
	for i := range parts {
		sum.Merge(&parts[i])
	}
	return sum
}

// Reducer finalizes merged partials into output records using fixed
// buffers.
type Reducer struct {
	keyBuf [32]byte
	valBuf [1024]byte
	rec    models.OutputRecord
}

// Finalize averages sum and renders the record for key. The result aliases
// the reducer's buffers until the next call.
func (r *Reducer) Finalize(key timecode.Key, sum *models.Partial) *models.OutputRecord {
	r.rec.Means = sum.Mean()
	r.rec.Key = key.AppendText(r.keyBuf[:0])
	r.rec.Value = floattext.AppendVector(r.valBuf[:0], r.rec.Means[:])
	return &r.rec
}

// Reduce merges a partition's partials by key and writes one record per key
// in ascending key order. It returns the number of records written.
func (r *Reducer) Reduce(batch []models.KeyedPartial, sink RecordSink) (int, error) {
	merged := Combine(batch)
	for i := range merged {
		if err := sink.Write(r.Finalize(merged[i].Key, &merged[i].Partial)); err != nil {
			return i, err
		}
	}
	return len(merged), nil
}
