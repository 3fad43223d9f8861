package processor

import "alphaflow/internal/timecode"

// Partition routes a key to one of n reducers using only its day, so every
// bucket of a trading day meets at the same reducer.
func Partition(key timecode.Key, n int) int {
	if n <= 1 {
		return 0
	}
	day := key.DayCode()
	return int((day ^ (day >> 16)) % uint32(n))
}
