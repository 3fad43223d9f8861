package processor

import (
	"slices"

	"alphaflow/internal/timecode"
	"alphaflow/models"
)

// Combine merges partials that share a key. The batch is sorted in place
// by unsigned key order and the merged result reuses its storage.
func Combine(batch []models.KeyedPartial) []models.KeyedPartial {
	if len(batch) < 2 {
		return batch
	}
	slices.SortStableFunc(batch, func(a, b models.KeyedPartial) int {
		return timecode.Compare(a.Key, b.Key)
	})

	out := batch[:1]
	for i := 1; i < len(batch); i++ {
		last := &out[len(out)-1]
		if last.Key == batch[i].Key {
			last.Merge(&batch[i].Partial)
			continue
		}
		out = append(out, batch[i])
	}
	return out
}
