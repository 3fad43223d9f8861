// Package floattext renders float32 values as decimal text without
// allocating. Values in the common magnitude range are written as fixed
// point with up to eight fractional digits; everything else falls back to
// strconv's shortest representation.
package floattext

import (
	"math"
	"strconv"
)

const (
	fixedMin   = 0.001
	fixedMax   = 1e7
	fracScale  = 1e8
	fracDigits = 8
)

// AppendFloat32 appends the text form of v to dst and returns the extended
// buffer.
func AppendFloat32(dst []byte, v float32) []byte {
	bits := math.Float32bits(v)
	if (bits>>23)&0xFF == 0xFF {
		if bits&0x7FFFFF != 0 {
			return append(dst, "NaN"...)
		}
		if bits>>31 != 0 {
			return append(dst, "-Inf"...)
		}
		return append(dst, "Inf"...)
	}
	if v == 0 {
		if bits>>31 != 0 {
			return append(dst, "-0.0"...)
		}
		return append(dst, "0.0"...)
	}

	abs := v
	if v < 0 {
		dst = append(dst, '-')
		abs = -v
	}
	if abs < fixedMin || abs > fixedMax {
		return strconv.AppendFloat(dst, float64(abs), 'g', -1, 32)
	}

	ipart := int64(abs)
	frac := float64(abs - float32(ipart))
	scaled := int64(frac*fracScale + 0.5)
	if scaled >= fracScale {
		ipart++
		scaled -= fracScale
	}

	dst = strconv.AppendInt(dst, ipart, 10)
	dst = append(dst, '.')
	if scaled == 0 {
		return append(dst, '0')
	}

	var digits [fracDigits]byte
	for i := fracDigits - 1; i >= 0; i-- {
		digits[i] = byte('0' + scaled%10)
		scaled /= 10
	}
	n := fracDigits
	for n > 1 && digits[n-1] == '0' {
		n--
	}
	return append(dst, digits[:n]...)
}

// AppendVector appends values separated by commas.
func AppendVector(dst []byte, values []float32) []byte {
	for i, v := range values {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendFloat32(dst, v)
	}
	return dst
}
