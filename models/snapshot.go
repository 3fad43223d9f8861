package models

// Levels is the order book depth carried by a snapshot.
const Levels = 5

// Snapshot is one order book observation for an instrument. It is a plain
// value and is copied into the instrument state cache.
type Snapshot struct {
	TradingDay int32 // YYYYMMDD
	TradeTime  int32 // HHMMSS
	Code       int32

	TotalBidVol int64
	TotalAskVol int64

	BidPrice [Levels]int64
	BidVol   [Levels]int64
	AskPrice [Levels]int64
	AskVol   [Levels]int64
}

// Reset zeroes the snapshot so it can be reused for the next record.
func (s *Snapshot) Reset() {
	*s = Snapshot{}
}

// SumBidVol returns the total resting volume across the bid levels.
func (s *Snapshot) SumBidVol() int64 {
	var sum int64
	for _, v := range s.BidVol {
		sum += v
	}
	return sum
}

// SumAskVol returns the total resting volume across the ask levels.
func (s *Snapshot) SumAskVol() int64 {
	var sum int64
	for _, v := range s.AskVol {
		sum += v
	}
	return sum
}
