package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"alphaflow/internal/timecode"
)

// NumFactors is the number of alpha factors computed per snapshot.
const NumFactors = 20

// PartialSize is the encoded size of a KeyedPartial: key, factor sums, count.
const PartialSize = 4 + NumFactors*4 + 4

// ErrShortPartial is returned when a frame is smaller than PartialSize.
var ErrShortPartial = errors.New("models: truncated partial frame")

// Vector holds one value per factor.
type Vector [NumFactors]float32

// HasInvalid reports whether any field is NaN or infinite.
func (v *Vector) HasInvalid() bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return true
		}
	}
	return false
}

// Partial is an additive aggregate of factor vectors for one time bucket.
type Partial struct {
	Sum   Vector
	Count int32
}

// Add folds a single observation into the partial.
func (p *Partial) Add(v *Vector) {
	for i := range p.Sum {
		p.Sum[i] += v[i]
	}
	p.Count++
}

// Merge folds another partial into p.
func (p *Partial) Merge(o *Partial) {
	for i := range p.Sum {
		p.Sum[i] += o.Sum[i]
	}
	p.Count += o.Count
}

// Mean returns the per-factor average. An empty partial yields zeros.
func (p *Partial) Mean() Vector {
	var out Vector
	if p.Count == 0 {
		return out
	}
	n := float32(p.Count)
	for i, s := range p.Sum {
		out[i] = s / n
	}
	return out
}

// KeyedPartial pairs a partial with its time bucket.
type KeyedPartial struct {
	Key timecode.Key
	Partial
}

// AppendBinary appends the big-endian frame for kp to dst.
func (kp *KeyedPartial) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(kp.Key))
	for _, f := range kp.Sum {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return binary.BigEndian.AppendUint32(dst, uint32(kp.Count))
}

// DecodeBinary fills kp from the first PartialSize bytes of b.
func (kp *KeyedPartial) DecodeBinary(b []byte) error {
	if len(b) < PartialSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPartial, len(b))
	}
	kp.Key = timecode.Key(binary.BigEndian.Uint32(b))
	off := 4
	for i := range kp.Sum {
		kp.Sum[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
		off += 4
	}
	kp.Count = int32(binary.BigEndian.Uint32(b[off:]))
	return nil
}
