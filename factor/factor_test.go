package factor

import (
	"math"
	"testing"

	"alphaflow/models"
)

func topOfBook(ap0 int64) models.Snapshot {
	s := models.Snapshot{TradingDay: 20240102, TradeTime: 93000, Code: 5, TotalBidVol: 100, TotalAskVol: 50}
	s.BidPrice[0], s.BidVol[0] = 100, 10
	s.AskPrice[0], s.AskVol[0] = ap0, 8
	return s
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-5*math.Max(1, math.Abs(float64(b)))
}

func TestComputeFirstObservation(t *testing.T) {
	cur := topOfBook(101)
	var v models.Vector
	Compute(&cur, nil, &v)

	checks := []struct {
		idx  int
		want float32
	}{
		{0, 1},
		{1, 1 / 100.5},
		{2, 100.5},
		{3, 2.0 / 18},
		{4, 2.0 / 18},
		{5, 10},
		{6, 8},
		{7, 2},
		{8, 10.0 / 8},
		{9, 50.0 / 150},
		{10, 100},
		{11, 101},
		{12, (1000.0 + 808.0) / 18},
		{13, 1},
		{14, 0.4},
		{15, 2.0 / 18},
		{16, 0},
		{17, 0},
		{18, 0},
		{19, 1.0 / 18},
	}
	for _, c := range checks {
		if !near(v[c.idx], c.want) {
			t.Errorf("factor[%d] = %v, want %v", c.idx, v[c.idx], c.want)
		}
	}
	if v.HasInvalid() {
		t.Fatalf("unexpected invalid value in %v", v)
	}
}

func TestComputeChangeFactors(t *testing.T) {
	prev := topOfBook(101)
	cur := topOfBook(102)
	cur.TradeTime = 93030
	var v models.Vector
	Compute(&cur, &prev, &v)
	if v[16] != 1 {
		t.Fatalf("ask0 change = %v, want 1", v[16])
	}
	if v[17] == 0 || !near(v[17], 0.5) {
		t.Fatalf("mid change = %v, want 0.5", v[17])
	}
	if v[18] != 0 {
		t.Fatalf("depth ratio change = %v, want 0", v[18])
	}
}

func TestComputeOverwritesStaleChangeFields(t *testing.T) {
	prev := topOfBook(90)
	cur := topOfBook(101)
	var v models.Vector
	Compute(&cur, &prev, &v)
	Compute(&cur, nil, &v)
	if v[16] != 0 || v[17] != 0 || v[18] != 0 {
		t.Fatalf("change fields not reset: %v", v[16:19])
	}
}

func TestComputeEmptyBookIsFinite(t *testing.T) {
	var empty models.Snapshot
	var v models.Vector
	Compute(&empty, &empty, &v)
	if v.HasInvalid() {
		t.Fatalf("empty book produced %v", v)
	}
}

func TestAlphaNames(t *testing.T) {
	if AlphaNames[0] != "alpha_1" || AlphaNames[19] != "alpha_20" {
		t.Fatalf("names = %v", AlphaNames)
	}
}
