package floattext

import (
	"math"
	"strconv"
	"testing"
)

func TestAppendFloat32(t *testing.T) {
	cases := []struct {
		in   float32
		want string
	}{
		{0, "0.0"},
		{float32(math.Copysign(0, -1)), "-0.0"},
		{1, "1.0"},
		{-2, "-2.0"},
		{1.5, "1.5"},
		{0.25, "0.25"},
		{-0.125, "-0.125"},
		{0.5, "0.5"},
		{1e7, "10000000.0"},
		{0.99999994, "0.99999994"},
		{float32(math.NaN()), "NaN"},
		{float32(math.Inf(1)), "Inf"},
		{float32(math.Inf(-1)), "-Inf"},
		{1e-5, "1e-05"},
		{-3e8, "-3e+08"},
	}
	for _, c := range cases {
		if got := string(AppendFloat32(nil, c.in)); got != c.want {
			t.Errorf("AppendFloat32(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	values := []float32{0.001, 0.0012345678, 0.1, 0.3333333, 1.2345678, 42.42, 123.456, 99999.99, 1234567.9, 9999999, -7.77}
	for _, v := range values {
		s := string(AppendFloat32(nil, v))
		parsed, err := strconv.ParseFloat(s, 32)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		diff := math.Abs(parsed - float64(v))
		tol := 5e-9 + math.Abs(float64(v))*1.2e-7
		if diff > tol {
			t.Errorf("%v rendered as %q, off by %g", v, s, diff)
		}
	}
}

func TestAppendVector(t *testing.T) {
	got := string(AppendVector([]byte("x="), []float32{1, 0.5, -0.25}))
	if got != "x=1.0,0.5,-0.25" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendDoesNotAllocate(t *testing.T) {
	buf := make([]byte, 0, 64)
	allocs := testing.AllocsPerRun(100, func() {
		buf = AppendFloat32(buf[:0], 123.456)
		buf = AppendFloat32(buf[:0], 1e-9)
	})
	if allocs != 0 {
		t.Fatalf("allocs = %v", allocs)
	}
}
