package reader

import "alphaflow/models"

// Column layout of a snapshot record. Only the listed columns are decoded;
// everything in between is skipped by counting delimiters.
const (
	colTradingDay = 0
	colTradeTime  = 1
	colCode       = 4
	colTotalBid   = 12
	colTotalAsk   = 13
	colFirstLevel = 17

	// RecordFields is the minimum number of columns a record must carry.
	RecordFields = colFirstLevel + 4*models.Levels

	maxDigits = 18
)

// cursor walks one record. pos is the start of the current field; once the
// last field has been consumed pos moves past the end of the buffer.
type cursor struct {
	buf []byte
	pos int
	ok  bool
}

func (c *cursor) fail() { c.ok = false; c.pos = len(c.buf) + 1 }

// exhausted reports whether no field starts at pos.
func (c *cursor) exhausted() bool { return c.pos > len(c.buf) }

// next positions the cursor after the delimiter at i, or past the end when
// the field ran to the end of the record.
func (c *cursor) next(i int) {
	if i < len(c.buf) {
		c.pos = i + 1
		return
	}
	c.pos = len(c.buf) + 1
}

// skip advances over n fields.
func (c *cursor) skip(n int) {
	if !c.ok {
		return
	}
	for ; n > 0; n-- {
		if c.exhausted() {
			c.fail()
			return
		}
		i := c.pos
		for i < len(c.buf) && c.buf[i] != ',' {
			i++
		}
		c.next(i)
	}
}

// int reads a signed decimal field. An empty field reads as 0.
func (c *cursor) int() int64 {
	if !c.ok {
		return 0
	}
	if c.exhausted() {
		c.fail()
		return 0
	}
	i := c.pos
	neg := false
	if i < len(c.buf) && c.buf[i] == '-' {
		neg = true
		i++
	}
	var v int64
	digits := 0
	for ; i < len(c.buf) && c.buf[i] != ','; i++ {
		d := c.buf[i] - '0'
		if d > 9 || digits == maxDigits {
			c.fail()
			return 0
		}
		v = v*10 + int64(d)
		digits++
	}
	c.next(i)
	if neg {
		return -v
	}
	return v
}

// date8 reads a fixed width YYYYMMDD field.
func (c *cursor) date8() int32 {
	if !c.ok {
		return 0
	}
	end := c.pos + 8
	if end > len(c.buf) || (end < len(c.buf) && c.buf[end] != ',') {
		c.fail()
		return 0
	}
	var v int32
	for _, ch := range c.buf[c.pos:end] {
		d := ch - '0'
		if d > 9 {
			c.fail()
			return 0
		}
		v = v*10 + int32(d)
	}
	c.next(end)
	return v
}

// code reads the numeric part of an instrument identifier and ignores any
// exchange suffix such as ".SH".
func (c *cursor) code() int32 {
	if !c.ok {
		return 0
	}
	if c.exhausted() {
		c.fail()
		return 0
	}
	i := c.pos
	var v int32
	digits := 0
	for ; i < len(c.buf); i++ {
		d := c.buf[i] - '0'
		if d > 9 {
			break
		}
		if digits == 9 {
			c.fail()
			return 0
		}
		v = v*10 + int32(d)
		digits++
	}
	for i < len(c.buf) && c.buf[i] != ',' {
		i++
	}
	c.next(i)
	return v
}

// ParseSnapshot decodes a single record into s, reusing its storage. It
// returns false for truncated or malformed records, leaving s in an
// unspecified state.
func ParseSnapshot(record []byte, s *models.Snapshot) bool {
	if n := len(record); n > 0 && record[n-1] == '\r' {
		record = record[:n-1]
	}
	c := cursor{buf: record, ok: true}

	s.TradingDay = c.date8()
	s.TradeTime = int32(c.int())
	c.skip(colCode - colTradeTime - 1)
	s.Code = c.code()
	c.skip(colTotalBid - colCode - 1)
	s.TotalBidVol = c.int()
	s.TotalAskVol = c.int()
	c.skip(colFirstLevel - colTotalAsk - 1)
	for l := 0; l < models.Levels; l++ {
		s.BidPrice[l] = c.int()
		s.BidVol[l] = c.int()
		s.AskPrice[l] = c.int()
		s.AskVol[l] = c.int()
	}
	return c.ok
}
