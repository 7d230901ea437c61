package protocol

import "testing"

func TestSequenceGreaterThanModular(t *testing.T) {
	cases := []struct {
		a, b SequenceNumber
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, 65535, true},   // wraps: 0 is newer than 65535
		{65535, 0, false},
		{100, 50, true},
		{50, 100, false},
		{5, 5, false},
	}
	for _, c := range cases {
		if got := SequenceGreaterThan(c.a, c.b); got != c.want {
			t.Errorf("SequenceGreaterThan(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSequenceBufferInsertAndEvict(t *testing.T) {
	buf := NewSequenceBuffer[int](4)
	buf.Insert(1, 100)
	buf.Insert(5, 500) // same slot (5 mod 4 == 1), evicts seq 1

	if _, ok := buf.Get(1); ok {
		t.Error("expected seq 1 to have been evicted")
	}
	v, ok := buf.Get(5)
	if !ok || v != 500 {
		t.Errorf("Get(5) = (%d, %v), want (500, true)", v, ok)
	}
}

func TestSequenceBufferRemove(t *testing.T) {
	buf := NewSequenceBuffer[int](16)
	buf.Insert(10, 1)
	buf.Remove(10)
	if buf.Contains(10) {
		t.Error("expected seq 10 to be removed")
	}
}
