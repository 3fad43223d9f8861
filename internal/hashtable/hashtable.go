// Package hashtable provides a fixed-capacity open-addressing table keyed by
// integers. Values are stored inline so lookups and in-place updates never
// allocate. The table does not grow; capacity is set once at creation.
package hashtable

import "errors"

var (
	// ErrFull is returned by Put when every slot holds another key.
	ErrFull = errors.New("hashtable: table is full")
	// ErrEmptyKey is returned by Put for the sentinel key.
	ErrEmptyKey = errors.New("hashtable: empty sentinel used as key")
)

// Integer is the set of key types the table accepts.
type Integer interface {
	~int32 | ~uint32 | ~int64 | ~uint64
}

// Table maps integer keys to values of type V with linear probing. The
// empty key marks a free slot and can never be stored.
type Table[K Integer, V any] struct {
	keys   []K
	values []V
	empty  K
	mask   uint64
	size   int
}

// New creates a table with room for at least capacity keys, rounded up to a
// power of two.
func New[K Integer, V any](capacity int, empty K) *Table[K, V] {
	n := 1
	for n < capacity {
		n <<= 1
	}
	t := &Table[K, V]{
		keys:   make([]K, n),
		values: make([]V, n),
		empty:  empty,
		mask:   uint64(n - 1),
	}
	t.resetKeys()
	return t
}

func (t *Table[K, V]) resetKeys() {
	for i := range t.keys {
		t.keys[i] = t.empty
	}
}

// fibonacci hashing spreads keys whose entropy sits in the high bits, such
// as time keys of different days sharing a time index.
func (t *Table[K, V]) slot(key K) uint64 {
	return (uint64(key) * 0x9E3779B97F4A7C15 >> 32) & t.mask
}

// Get returns a pointer to the value stored under key, or nil. The pointer
// stays valid until the next Clear.
func (t *Table[K, V]) Get(key K) *V {
	if key == t.empty {
		return nil
	}
	for i, n := t.slot(key), 0; n < len(t.keys); i, n = (i+1)&t.mask, n+1 {
		switch t.keys[i] {
		case key:
			return &t.values[i]
		case t.empty:
			return nil
		}
	}
	return nil
}

// Put returns a pointer to the slot for key, inserting a zero value when the
// key is new. The boolean reports whether the key already existed.
func (t *Table[K, V]) Put(key K) (*V, bool, error) {
	if key == t.empty {
		return nil, false, ErrEmptyKey
	}
	for i, n := t.slot(key), 0; n < len(t.keys); i, n = (i+1)&t.mask, n+1 {
		switch t.keys[i] {
		case key:
			return &t.values[i], true, nil
		case t.empty:
			t.keys[i] = key
			var zero V
			t.values[i] = zero
			t.size++
			return &t.values[i], false, nil
		}
	}
	return nil, false, ErrFull
}

// Len reports the number of stored keys.
func (t *Table[K, V]) Len() int { return t.size }

// Cap reports the number of slots.
func (t *Table[K, V]) Cap() int { return len(t.keys) }

// Range calls fn for every stored entry in slot order until fn returns
// false.
func (t *Table[K, V]) Range(fn func(key K, value *V) bool) {
	for i, k := range t.keys {
		if k == t.empty {
			continue
		}
		if !fn(k, &t.values[i]) {
			return
		}
	}
}

// Clear removes all keys while keeping the allocated slots.
func (t *Table[K, V]) Clear() {
	if t.size == 0 {
		return
	}
	t.resetKeys()
	t.size = 0
}
