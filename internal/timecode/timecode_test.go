package timecode

import (
	"errors"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	k, err := Encode(20240102, 93000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wantDay := uint32(10*372 + 0 + 1)
	if k.DayCode() != wantDay {
		t.Fatalf("day code = %d, want %d", k.DayCode(), wantDay)
	}
	if k.TimeCode() != 1800 {
		t.Fatalf("time code = %d, want 1800", k.TimeCode())
	}
	if uint32(k) != wantDay<<DateShift|1800 {
		t.Fatalf("key = %d", k)
	}
}

func TestRoundTripInSession(t *testing.T) {
	days := []int32{20140101, 20150615, 20201231, 20240102, 20241231, 20250104}
	times := []int32{90000, 90001, 100000, 113000, 130000, 130001, 143015, 150000}
	for _, d := range days {
		for _, tt := range times {
			k, err := Encode(d, tt)
			if err != nil {
				t.Fatalf("encode(%d, %d): %v", d, tt, err)
			}
			if got := k.TradingDay(); got != d {
				t.Errorf("day round trip %d -> %d", d, got)
			}
			if got := k.TradeTime(); got != tt {
				t.Errorf("time round trip %d -> %d", tt, got)
			}
		}
	}
}

func TestCollapsedTimes(t *testing.T) {
	cases := []struct {
		in, want int32
	}{
		{0, 90000},
		{85959, 90000},
		{113001, 113000},
		{120000, 113000},
		{125959, 113000},
		{150001, 150000},
		{235959, 150000},
	}
	for _, c := range cases {
		k, err := Encode(20240102, c.in)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if got := k.TradeTime(); got != c.want {
			t.Errorf("time %06d decoded as %06d, want %06d", c.in, got, c.want)
		}
	}
	k, _ := Encode(20240102, 160000)
	if k.TimeCode() != MaxTimeIndex {
		t.Fatalf("post-close index = %d, want %d", k.TimeCode(), MaxTimeIndex)
	}
}

func TestLunchBoundary(t *testing.T) {
	am, _ := Encode(20240102, 113000)
	lunch, _ := Encode(20240102, 120000)
	pm, _ := Encode(20240102, 130000)
	if am != lunch {
		t.Fatalf("lunch should share the morning close key")
	}
	if pm.TimeCode() != AMDuration+1 {
		t.Fatalf("afternoon open index = %d", pm.TimeCode())
	}
	if Compare(lunch, pm) >= 0 {
		t.Fatalf("afternoon must sort after lunch")
	}
}

func TestMonotonic(t *testing.T) {
	steps := []struct{ day, tm int32 }{
		{20231229, 90000}, {20231229, 150000}, {20240101, 85000}, {20240101, 93000},
		{20240101, 113000}, {20240101, 130000}, {20240101, 145959}, {20240102, 90000},
		{20240201, 90000}, {20250101, 90000},
	}
	var prev Key
	for i, s := range steps {
		k, err := Encode(s.day, s.tm)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if i > 0 && Compare(prev, k) > 0 {
			t.Fatalf("%d %06d sorts before its predecessor", s.day, s.tm)
		}
		prev = k
	}
}

func TestOutOfRange(t *testing.T) {
	for _, d := range []int32{20130101, 20260101, 20250105, 20241301, 20240100, 0} {
		if _, err := Encode(d, 93000); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Encode(%d) error = %v, want ErrOutOfRange", d, err)
		}
	}
	if _, err := Encode(20250104, 93000); err != nil {
		t.Fatalf("last representable offset rejected: %v", err)
	}
}

func TestMMDDAndText(t *testing.T) {
	k, _ := Encode(20240305, 93005)
	if k.MMDD() != 305 {
		t.Fatalf("mmdd = %d", k.MMDD())
	}
	if got := k.String(); got != "20240305_093005" {
		t.Fatalf("text = %q", got)
	}
	pm, _ := Encode(20240305, 140000)
	if got := string(pm.AppendText(nil)); got != "20240305_140000" {
		t.Fatalf("text = %q", got)
	}
}
