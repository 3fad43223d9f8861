// Package shuffle moves partial aggregates from workers to reducers. Each
// worker writes through its own MapOutput, which routes partials to a
// partition, combines them and seals them into encoded segments. Reducers
// read the segments of their partition once every worker has finished.
package shuffle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/golang/snappy"

	"alphaflow/internal/timecode"
	"alphaflow/models"
)

// ErrCorruptSegment is returned when a segment cannot be decoded.
var ErrCorruptSegment = errors.New("shuffle: corrupt segment")

// ErrClosed is returned when emitting into a closed map output.
var ErrClosed = errors.New("shuffle: map output closed")

// Combiner merges partials sharing a key within one batch.
type Combiner func([]models.KeyedPartial) []models.KeyedPartial

// Partitioner maps a key to one of n partitions.
type Partitioner func(key timecode.Key, n int) int

type Options struct {
	Partitions   int
	Compression  string // "snappy" or "none"
	SegmentBytes int
	// SpillDir, when set, keeps sealed segments on disk instead of memory.
	SpillDir  string
	Combine   Combiner
	Partition Partitioner
}

type segment struct {
	data   []byte
	path   string
	frames int
}

// Stats describes the data that crossed the shuffle.
type Stats struct {
	Segments    int64
	Frames      int64
	RawBytes    int64
	StoredBytes int64
}

// Shuffle holds the sealed segments of every partition.
type Shuffle struct {
	opts Options

	mu       sync.Mutex
	segments [][]segment
	seq      int

	segmentsSealed int64
	frames         int64
	rawBytes       int64
	storedBytes    int64
}

func New(opts Options) (*Shuffle, error) {
	if opts.Partitions <= 0 {
		return nil, fmt.Errorf("shuffle: partitions must be greater than 0")
	}
	if opts.Partition == nil {
		return nil, fmt.Errorf("shuffle: partitioner is required")
	}
	switch opts.Compression {
	case "", "none", "snappy":
	default:
		return nil, fmt.Errorf("shuffle: unknown compression %q", opts.Compression)
	}
	if opts.SegmentBytes < models.PartialSize {
		opts.SegmentBytes = models.PartialSize
	}
	if opts.SpillDir != "" {
		if err := os.MkdirAll(opts.SpillDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create spill directory: %w", err)
		}
	}
	return &Shuffle{opts: opts, segments: make([][]segment, opts.Partitions)}, nil
}

// Partitions reports the number of partitions.
func (s *Shuffle) Partitions() int { return s.opts.Partitions }

// NewMapOutput returns the emitter for one worker. It is not safe for
// concurrent use; give each worker its own.
func (s *Shuffle) NewMapOutput() *MapOutput {
	return &MapOutput{
		sh:      s,
		pending: make([][]models.KeyedPartial, s.opts.Partitions),
		limit:   s.opts.SegmentBytes / models.PartialSize,
	}
}

func (s *Shuffle) store(p int, raw []byte, frames int) error {
	data := raw
	if s.opts.Compression == "snappy" {
		data = snappy.Encode(nil, raw)
	} else {
		data = append([]byte(nil), raw...)
	}

	seg := segment{frames: frames}
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if s.opts.SpillDir != "" {
		seg.path = filepath.Join(s.opts.SpillDir, fmt.Sprintf("part-%05d-%06d.seg", p, seq))
		if err := os.WriteFile(seg.path, data, 0o644); err != nil {
			return fmt.Errorf("failed to spill segment: %w", err)
		}
	} else {
		seg.data = data
	}

	s.mu.Lock()
	s.segments[p] = append(s.segments[p], seg)
	s.mu.Unlock()

	atomic.AddInt64(&s.segmentsSealed, 1)
	atomic.AddInt64(&s.frames, int64(frames))
	atomic.AddInt64(&s.rawBytes, int64(len(raw)))
	atomic.AddInt64(&s.storedBytes, int64(len(data)))
	return nil
}

// Partition decodes every segment of partition p. Call it only after all
// map outputs have been closed.
func (s *Shuffle) Partition(p int) ([]models.KeyedPartial, error) {
	if p < 0 || p >= s.opts.Partitions {
		return nil, fmt.Errorf("shuffle: partition %d out of range", p)
	}
	s.mu.Lock()
	segs := append([]segment(nil), s.segments[p]...)
	s.mu.Unlock()

	total := 0
	for _, seg := range segs {
		total += seg.frames
	}
	out := make([]models.KeyedPartial, 0, total)
	for i, seg := range segs {
		data := seg.data
		if seg.path != "" {
			b, err := os.ReadFile(seg.path)
			if err != nil {
				return nil, fmt.Errorf("failed to read spilled segment: %w", err)
			}
			data = b
		}
		raw, err := s.decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: partition %d segment %d: %v", ErrCorruptSegment, p, i, err)
		}
		if out, err = Decode(raw, out); err != nil {
			return nil, fmt.Errorf("partition %d segment %d: %w", p, i, err)
		}
	}
	return out, nil
}

func (s *Shuffle) decompress(data []byte) ([]byte, error) {
	if s.opts.Compression != "snappy" {
		return data, nil
	}
	return snappy.Decode(nil, data)
}

// Stats returns the shuffle counters.
func (s *Shuffle) Stats() Stats {
	return Stats{
		Segments:    atomic.LoadInt64(&s.segmentsSealed),
		Frames:      atomic.LoadInt64(&s.frames),
		RawBytes:    atomic.LoadInt64(&s.rawBytes),
		StoredBytes: atomic.LoadInt64(&s.storedBytes),
	}
}

// Cleanup removes spilled segment files.
func (s *Shuffle) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for p := range s.segments {
		for _, seg := range s.segments[p] {
			if seg.path == "" {
				continue
			}
			if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
		s.segments[p] = nil
	}
	return firstErr
}

// Encode appends the frames of batch to dst.
func Encode(dst []byte, batch []models.KeyedPartial) []byte {
	for i := range batch {
		dst = batch[i].AppendBinary(dst)
	}
	return dst
}

// Decode appends the frames held in raw to out.
func Decode(raw []byte, out []models.KeyedPartial) ([]models.KeyedPartial, error) {
	if len(raw)%models.PartialSize != 0 {
		return out, fmt.Errorf("%w: %d bytes is not a whole number of frames", ErrCorruptSegment, len(raw))
	}
	var kp models.KeyedPartial
	for off := 0; off < len(raw); off += models.PartialSize {
		if err := kp.DecodeBinary(raw[off:]); err != nil {
			return out, err
		}
		out = append(out, kp)
	}
	return out, nil
}

// MapOutput buffers one worker's partials per partition.
type MapOutput struct {
	sh      *Shuffle
	pending [][]models.KeyedPartial
	limit   int
	enc     []byte
	closed  bool
}

// Emit routes kp to its partition. kp is copied.
func (m *MapOutput) Emit(kp *models.KeyedPartial) error {
	if m.closed {
		return ErrClosed
	}
	p := m.sh.opts.Partition(kp.Key, m.sh.opts.Partitions)
	m.pending[p] = append(m.pending[p], *kp)
	if len(m.pending[p]) >= m.limit {
		return m.seal(p)
	}
	return nil
}

func (m *MapOutput) seal(p int) error {
	batch := m.pending[p]
	if len(batch) == 0 {
		return nil
	}
	if m.sh.opts.Combine != nil {
		batch = m.sh.opts.Combine(batch)
	}
	m.enc = Encode(m.enc[:0], batch)
	if err := m.sh.store(p, m.enc, len(batch)); err != nil {
		return err
	}
	m.pending[p] = m.pending[p][:0]
	return nil
}

// Close seals every partition's remaining partials.
func (m *MapOutput) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for p := range m.pending {
		if err := m.seal(p); err != nil {
			return err
		}
	}
	return nil
}
