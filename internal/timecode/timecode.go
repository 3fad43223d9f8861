// Package timecode packs a trading day and an intraday trading-session time
// into a single 26-bit key whose unsigned order is chronological.
package timecode

import (
	"errors"
	"fmt"
)

// Key is a compact time key: bits 14..25 hold the day offset, bits 0..13 the
// session time index.
type Key uint32

const (
	BaseYear = 2014
	MaxYears = 12

	DateShift = 14
	TimeMask  = 0x3FFF
	DateMask  = 0xFFF

	daysPerMonth = 31
	daysPerYear  = 12 * daysPerMonth

	AMStart = 9 * 3600               // 09:00:00
	AMEnd   = 11*3600 + 30*60        // 11:30:00
	PMStart = 13 * 3600              // 13:00:00
	PMEnd   = 15 * 3600              // 15:00:00

	AMDuration = AMEnd - AMStart
	PMDuration = PMEnd - PMStart

	// MaxTimeIndex is the index every post-close time collapses to.
	MaxTimeIndex = AMDuration + PMDuration + 1
)

// ErrOutOfRange is returned when a date cannot be represented in the key.
var ErrOutOfRange = errors.New("timecode: date out of range")

// Encode builds the key for a YYYYMMDD day and an HHMMSS time of day.
func Encode(tradingDay, tradeTime int32) (Key, error) {
	year := tradingDay / 10000
	month := (tradingDay / 100) % 100
	day := tradingDay % 100

	y := year - BaseYear
	if y < 0 || y >= MaxYears {
		return 0, fmt.Errorf("%w: year %d outside [%d, %d]", ErrOutOfRange, year, BaseYear, BaseYear+MaxYears-1)
	}
	if month < 1 || month > 12 || day < 1 || day > daysPerMonth {
		return 0, fmt.Errorf("%w: invalid month/day in %d", ErrOutOfRange, tradingDay)
	}

	offset := y*daysPerYear + (month-1)*daysPerMonth + (day - 1)
	if offset > DateMask {
		return 0, fmt.Errorf("%w: day offset %d exceeds %d", ErrOutOfRange, offset, DateMask)
	}

	return Key(uint32(offset)<<DateShift | uint32(TimeIndex(SecondsOfDay(tradeTime)))), nil
}

// SecondsOfDay converts an HHMMSS integer into seconds since midnight.
func SecondsOfDay(hhmmss int32) int32 {
	return (hhmmss/10000)*3600 + ((hhmmss/100)%100)*60 + hhmmss%100
}

// TimeIndex maps seconds since midnight onto the session index. Pre-open
// collapses to 0, the lunch break onto the morning close and post-close
// onto MaxTimeIndex.
func TimeIndex(sec int32) int32 {
	switch {
	case sec < AMStart:
		return 0
	case sec <= AMEnd:
		return sec - AMStart
	case sec < PMStart:
		return AMDuration
	case sec <= PMEnd:
		return AMDuration + (sec - PMStart) + 1
	default:
		return MaxTimeIndex
	}
}

// DayCode returns the 12-bit day offset of the key.
func (k Key) DayCode() uint32 {
	return uint32(k) >> DateShift
}

// TimeCode returns the 14-bit session time index of the key.
func (k Key) TimeCode() uint32 {
	return uint32(k) & TimeMask
}

// TradingDay decodes the key's day as YYYYMMDD.
func (k Key) TradingDay() int32 {
	dc := int32(k.DayCode())
	year := BaseYear + dc/daysPerYear
	rem := dc % daysPerYear
	return year*10000 + (rem/daysPerMonth+1)*100 + rem%daysPerMonth + 1
}

// MMDD decodes the key's day as MMDD.
func (k Key) MMDD() int32 {
	rem := int32(k.DayCode()) % daysPerYear
	return (rem/daysPerMonth+1)*100 + rem%daysPerMonth + 1
}

// TradeTime decodes the key's time as HHMMSS. Times that were collapsed on
// encoding come back as the bucket boundary.
func (k Key) TradeTime() int32 {
	tc := int32(k.TimeCode())
	var sec int32
	if tc <= AMDuration {
		sec = AMStart + tc
	} else {
		sec = PMStart + (tc - AMDuration - 1)
	}
	return (sec/3600)*10000 + ((sec%3600)/60)*100 + sec%60
}

// Compare orders keys as unsigned integers.
func Compare(a, b Key) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// AppendText appends the key as YYYYMMDD_HHMMSS with a zero padded time.
func (k Key) AppendText(dst []byte) []byte {
	dst = appendPadded(dst, k.TradingDay(), 8)
	dst = append(dst, '_')
	return appendPadded(dst, k.TradeTime(), 6)
}

func (k Key) String() string {
	var buf [15]byte
	return string(k.AppendText(buf[:0]))
}

func appendPadded(dst []byte, v int32, width int) []byte {
	var tmp [10]byte
	i := len(tmp)
	for v > 0 || i == len(tmp) {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	for n := len(tmp) - i; n < width; n++ {
		dst = append(dst, '0')
	}
	return append(dst, tmp[i:]...)
}
