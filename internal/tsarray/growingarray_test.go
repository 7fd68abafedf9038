package tsarray

import "testing"

func TestGrowingArraySetGetRoundTrip(t *testing.T) {
	a, err := New[float64](4, 1, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := a.Set(i, Row[float64]{float64(i)}); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
	for i := 0; i < 10; i++ {
		row, err := a.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if row[0] != float64(i) {
			t.Fatalf("Get(%d) = %v, want %v", i, row[0], float64(i))
		}
	}
}

func TestGrowingArrayGetOutOfRange(t *testing.T) {
	a, _ := New[float64](4, 1, 0, nil)
	_ = a.Set(0, Row[float64]{1})
	if _, err := a.Get(1); err == nil {
		t.Fatal("Get(1) on length-1 array should fail")
	}
}

func TestGrowingArraySliceSpansMultipleChunks(t *testing.T) {
	a, _ := New[float64](4, 1, 0, nil)
	matrix := make([]Row[float64], 9)
	for i := range matrix {
		matrix[i] = Row[float64]{float64(i * 2)}
	}
	if err := a.SetSlice(0, 9, matrix); err != nil {
		t.Fatalf("SetSlice: %v", err)
	}
	got, err := a.GetSlice(2, 7)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len(got) = %d, want 5", len(got))
	}
	for i, row := range got {
		want := float64((i + 2) * 2)
		if row[0] != want {
			t.Fatalf("got[%d] = %v, want %v", i, row[0], want)
		}
	}
}

func TestGrowingArrayZeroFillsNewChunks(t *testing.T) {
	a, _ := New[float64](4, 1, -1, nil)
	if err := a.Set(9, Row[float64]{42}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
	row, err := a.Get(5)
	if err != nil {
		t.Fatalf("Get(5): %v", err)
	}
	if row[0] != -1 {
		t.Fatalf("Get(5) = %v, want zero value -1", row[0])
	}
}

func TestGrowingArrayNeverShrinks(t *testing.T) {
	a, _ := New[float64](4, 1, 0, nil)
	_ = a.Set(20, Row[float64]{1})
	lenAfterFirst := a.Len()
	_ = a.Set(0, Row[float64]{2})
	if a.Len() != lenAfterFirst {
		t.Fatalf("Len() shrank from %d to %d", lenAfterFirst, a.Len())
	}
}

func TestGrowingArrayInvalidArgs(t *testing.T) {
	if _, err := New[float64](0, 1, 0, nil); err == nil {
		t.Fatal("chunk_size=0 should fail")
	}
	if _, err := New[float64](4, 0, 0, nil); err == nil {
		t.Fatal("width=0 should fail")
	}
}

func TestGrowingArraySmallChunkSizeWarns(t *testing.T) {
	var got string
	warn := func(kind, msg string) { got = kind }
	if _, err := New[float64](2, 1, 0, warn); err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != "small_chunk_size" {
		t.Fatalf("warn kind = %q, want small_chunk_size", got)
	}
}

func TestGrowingArraySetWrongWidthFails(t *testing.T) {
	a, _ := New[float64](4, 2, 0, nil)
	if err := a.Set(0, Row[float64]{1}); err == nil {
		t.Fatal("Set with wrong row width should fail")
	}
}

func TestGrowingArrayEmptySliceOnEmptyArray(t *testing.T) {
	a, _ := New[float64](4, 1, 0, nil)
	got, err := a.GetSlice(0, 0)
	if err != nil {
		t.Fatalf("GetSlice(0,0) on empty array: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
	if err := a.SetSlice(0, 0, nil); err != nil {
		t.Fatalf("SetSlice(0,0) on empty array: %v", err)
	}
}
