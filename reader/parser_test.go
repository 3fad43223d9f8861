package reader

import (
	"strconv"
	"strings"
	"testing"

	"alphaflow/models"
)

// record builds a full snapshot line. levels holds bp, bv, ap, av per level.
func record(day, tm string, code string, tBid, tAsk int64, levels [][4]int64) string {
	f := make([]string, RecordFields)
	for i := range f {
		f[i] = "0"
	}
	f[colTradingDay] = day
	f[colTradeTime] = tm
	f[2] = "XSHG"
	f[3] = "stock"
	f[colCode] = code
	f[colTotalBid] = strconv.FormatInt(tBid, 10)
	f[colTotalAsk] = strconv.FormatInt(tAsk, 10)
	for l, lv := range levels {
		for j, v := range lv {
			f[colFirstLevel+4*l+j] = strconv.FormatInt(v, 10)
		}
	}
	return strings.Join(f, ",")
}

func TestParseSnapshot(t *testing.T) {
	line := record("20240102", "93000", "600000.SH", 100, 50, [][4]int64{
		{100, 10, 101, 8},
		{99, 5, 102, 7},
		{98, 1, 103, 2},
		{97, 0, 104, 0},
		{96, 3, -1, 4},
	})
	var s models.Snapshot
	if !ParseSnapshot([]byte(line), &s) {
		t.Fatalf("parse failed for %q", line)
	}
	if s.TradingDay != 20240102 || s.TradeTime != 93000 || s.Code != 600000 {
		t.Fatalf("header fields = %d %d %d", s.TradingDay, s.TradeTime, s.Code)
	}
	if s.TotalBidVol != 100 || s.TotalAskVol != 50 {
		t.Fatalf("totals = %d %d", s.TotalBidVol, s.TotalAskVol)
	}
	if s.BidPrice[1] != 99 || s.BidVol[2] != 1 || s.AskPrice[3] != 104 || s.AskVol[4] != 4 || s.AskPrice[4] != -1 {
		t.Fatalf("levels = %+v", s)
	}
}

func TestParseSnapshotCRLFAndSuffix(t *testing.T) {
	line := record("20240102", "150000", "000001.SZ", 1, 2, nil) + "\r"
	var s models.Snapshot
	if !ParseSnapshot([]byte(line), &s) {
		t.Fatalf("parse failed")
	}
	if s.Code != 1 || s.TradeTime != 150000 {
		t.Fatalf("got code %d time %d", s.Code, s.TradeTime)
	}
}

func TestParseSnapshotRejects(t *testing.T) {
	good := record("20240102", "93000", "600000", 1, 1, nil)
	fields := strings.Split(good, ",")

	mutate := func(i int, v string) string {
		f := append([]string(nil), fields...)
		f[i] = v
		return strings.Join(f, ",")
	}

	cases := map[string]string{
		"empty":          "",
		"header":         "tradingDay,tradeTime,a,b,code",
		"truncated":      strings.Join(fields[:RecordFields-1], ","),
		"short date":     mutate(colTradingDay, "2024010"),
		"alpha date":     mutate(colTradingDay, "2024O102"),
		"decimal price":  mutate(colFirstLevel, "10.5"),
		"bad volume":     mutate(colTotalBid, "1x"),
		"too many digit": mutate(colTotalAsk, "1234567890123456789"),
	}
	var s models.Snapshot
	for name, line := range cases {
		if ParseSnapshot([]byte(line), &s) {
			t.Errorf("%s: expected parse failure", name)
		}
	}
}

func TestParseSnapshotEmptyNumeric(t *testing.T) {
	good := record("20240102", "93000", "600000", 7, 1, nil)
	f := strings.Split(good, ",")
	f[colTotalBid] = ""
	var s models.Snapshot
	if !ParseSnapshot([]byte(strings.Join(f, ",")), &s) {
		t.Fatalf("parse failed")
	}
	if s.TotalBidVol != 0 {
		t.Fatalf("empty field parsed as %d", s.TotalBidVol)
	}
}

func TestParseSnapshotNoAlloc(t *testing.T) {
	line := []byte(record("20240102", "93000", "600000.SH", 100, 50, [][4]int64{{100, 10, 101, 8}}))
	var s models.Snapshot
	allocs := testing.AllocsPerRun(100, func() {
		ParseSnapshot(line, &s)
	})
	if allocs != 0 {
		t.Fatalf("allocs = %v", allocs)
	}
}
