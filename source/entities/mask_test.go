package entities

import "testing"

func TestStateMaskSetAndClear(t *testing.T) {
	m := NewStateMask(10)
	m.Set(0)
	m.Set(9)
	if !m.IsSet(0) || !m.IsSet(9) {
		t.Fatal("expected bits 0 and 9 to be set")
	}
	if m.IsSet(1) {
		t.Fatal("expected bit 1 to be unset")
	}
	if m.IsEmpty() {
		t.Fatal("expected mask to be non-empty")
	}
	m.Clear()
	if !m.IsEmpty() {
		t.Fatal("expected mask to be empty after Clear")
	}
}

func TestStateMaskOrAndAndNot(t *testing.T) {
	a := NewStateMask(8)
	a.Set(1)
	a.Set(3)

	b := NewStateMask(8)
	b.Set(3)
	b.Set(5)

	a.Or(b)
	for _, bit := range []int{1, 3, 5} {
		if !a.IsSet(bit) {
			t.Errorf("expected bit %d set after Or", bit)
		}
	}

	a.AndNot(b)
	if !a.IsSet(1) {
		t.Error("expected bit 1 to survive AndNot")
	}
	if a.IsSet(3) || a.IsSet(5) {
		t.Error("expected bits 3 and 5 cleared by AndNot")
	}
}

func TestStateMaskCloneIsIndependent(t *testing.T) {
	a := NewStateMask(8)
	a.Set(2)
	b := a.Clone()
	b.Set(4)
	if a.IsSet(4) {
		t.Error("mutating the clone must not affect the original")
	}
}
