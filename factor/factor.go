// Package factor computes the twenty order book alphas for a snapshot.
//
// Indices 0-15 and 19 depend only on the current snapshot. Indices 16-18
// are first differences against the previous snapshot of the same
// instrument and are zero when there is none.
package factor

import (
	"strconv"

	"alphaflow/models"
)

// Epsilon guards every division against empty books.
const Epsilon float32 = 1e-7

// AlphaNames are the output column names in index order.
var AlphaNames = func() [models.NumFactors]string {
	var names [models.NumFactors]string
	for i := range names {
		names[i] = "alpha_" + strconv.Itoa(i+1)
	}
	return names
}()

var levelWeights = [models.Levels]float64{1, 1.0 / 2, 1.0 / 3, 1.0 / 4, 1.0 / 5}

// Compute fills out with the factors of cur. prev is the previous snapshot
// of the same instrument or nil.
func Compute(cur, prev *models.Snapshot, out *models.Vector) {
	sumBid := cur.SumBidVol()
	sumAsk := cur.SumAskVol()
	totalVol := sumBid + sumAsk
	totalTVol := cur.TotalBidVol + cur.TotalAskVol

	invSumBid := 1 / (float32(sumBid) + Epsilon)
	invSumAsk := 1 / (float32(sumAsk) + Epsilon)
	invTotalVol := 1 / (float32(totalVol) + Epsilon)
	invTotalTVol := 1 / (float32(totalTVol) + Epsilon)

	var wBid, wAsk int64
	var wbAsym, waAsym float64
	for i := 0; i < models.Levels; i++ {
		b := cur.BidPrice[i] * cur.BidVol[i]
		a := cur.AskPrice[i] * cur.AskVol[i]
		wBid += b
		wAsk += a
		wbAsym += float64(cur.BidVol[i]) * levelWeights[i]
		waAsym += float64(cur.AskVol[i]) * levelWeights[i]
	}
	wBidPrice := float64(wBid)
	wAskPrice := float64(wAsk)

	ap0, bp0 := cur.AskPrice[0], cur.BidPrice[0]
	av0, bv0 := cur.AskVol[0], cur.BidVol[0]
	mid := midPrice(cur)

	out[0] = float32(ap0 - bp0)
	out[1] = out[0] / (mid + Epsilon)
	out[2] = mid
	out[3] = float32(bv0-av0) / (float32(bv0+av0) + Epsilon)
	out[4] = float32(sumBid-sumAsk) * invTotalVol
	out[5] = float32(sumBid)
	out[6] = float32(sumAsk)
	out[7] = float32(sumBid - sumAsk)
	out[8] = float32(sumBid) * invSumAsk
	out[9] = float32(cur.TotalBidVol-cur.TotalAskVol) * invTotalTVol
	out[10] = float32(wBidPrice * float64(invSumBid))
	out[11] = float32(wAskPrice * float64(invSumAsk))
	out[12] = float32((wBidPrice + wAskPrice) * float64(invTotalVol))
	out[13] = out[11] - out[10]
	out[14] = out[7] * 0.2
	out[15] = float32((wbAsym - waAsym) / (wbAsym + waAsym + float64(Epsilon)))

	if prev != nil {
		out[16] = float32(ap0 - prev.AskPrice[0])
		out[17] = mid - midPrice(prev)
		out[18] = float32(depthRatio(cur)) - float32(depthRatio(prev))
	} else {
		out[16], out[17], out[18] = 0, 0, 0
	}

	out[19] = out[0] * invTotalVol
}

func midPrice(s *models.Snapshot) float32 {
	return float32(float64(s.AskPrice[0]+s.BidPrice[0]) * 0.5)
}

func depthRatio(s *models.Snapshot) float64 {
	return float64(s.SumBidVol()) / float64(float32(s.SumAskVol())+Epsilon)
}
