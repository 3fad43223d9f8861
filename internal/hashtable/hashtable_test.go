package hashtable

import (
	"errors"
	"testing"
)

func TestPutGet(t *testing.T) {
	tbl := New[int32, int64](10, -1)
	if tbl.Cap() != 16 {
		t.Fatalf("cap = %d, want 16", tbl.Cap())
	}
	for k := int32(0); k < 12; k++ {
		v, existed, err := tbl.Put(k * 1000)
		if err != nil || existed {
			t.Fatalf("put %d: existed=%v err=%v", k, existed, err)
		}
		*v = int64(k)
	}
	if tbl.Len() != 12 {
		t.Fatalf("len = %d", tbl.Len())
	}
	for k := int32(0); k < 12; k++ {
		v := tbl.Get(k * 1000)
		if v == nil || *v != int64(k) {
			t.Fatalf("get %d = %v", k, v)
		}
	}
	if tbl.Get(7) != nil {
		t.Fatalf("unexpected hit")
	}
	v, existed, _ := tbl.Put(3000)
	if !existed || *v != 3 {
		t.Fatalf("re-put lost value")
	}
}

func TestFullAndSentinel(t *testing.T) {
	tbl := New[uint32, struct{}](4, ^uint32(0))
	for k := uint32(0); k < 4; k++ {
		if _, _, err := tbl.Put(k << 14); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, _, err := tbl.Put(99); !errors.Is(err, ErrFull) {
		t.Fatalf("err = %v, want ErrFull", err)
	}
	if _, _, err := tbl.Put(^uint32(0)); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("err = %v, want ErrEmptyKey", err)
	}
	if tbl.Get(99) != nil {
		t.Fatalf("full table lookup of absent key should miss")
	}
}

func TestClearAndRange(t *testing.T) {
	tbl := New[uint32, int](8, ^uint32(0))
	for _, k := range []uint32{1, 2, 3} {
		v, _, _ := tbl.Put(k)
		*v = int(k) * 10
	}
	sum := 0
	tbl.Range(func(k uint32, v *int) bool {
		sum += *v
		return true
	})
	if sum != 60 {
		t.Fatalf("sum = %d", sum)
	}
	tbl.Clear()
	if tbl.Len() != 0 || tbl.Get(2) != nil {
		t.Fatalf("clear left entries behind")
	}
	v, existed, _ := tbl.Put(2)
	if existed || *v != 0 {
		t.Fatalf("stale value after clear")
	}
}
