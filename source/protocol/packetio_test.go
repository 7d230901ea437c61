package protocol

import "testing"

func TestWriterRoundTripsManagerSections(t *testing.T) {
	w := NewWriter()
	if !w.WriteEvent([]byte("evt-a")) {
		t.Fatal("expected first event to fit")
	}
	if !w.WriteEntityMessage([]byte("ent-a")) {
		t.Fatal("expected first entity message to fit")
	}

	r := NewReader(w.Bytes())

	kind, ok := r.ReadManagerType()
	if !ok || kind != ManagerEvent {
		t.Fatalf("first section = (%v, %v), want (ManagerEvent, true)", kind, ok)
	}
	count, err := r.ReadByte()
	if err != nil || count != 1 {
		t.Fatalf("event count = %d, err %v, want 1", count, err)
	}
	item, err := r.ReadBytes(len("evt-a"))
	if err != nil || string(item) != "evt-a" {
		t.Fatalf("event item = %q, err %v", item, err)
	}

	kind, ok = r.ReadManagerType()
	if !ok || kind != ManagerEntity {
		t.Fatalf("second section = (%v, %v), want (ManagerEntity, true)", kind, ok)
	}
	count, err = r.ReadByte()
	if err != nil || count != 1 {
		t.Fatalf("entity count = %d, err %v, want 1", count, err)
	}
	item, err = r.ReadBytes(len("ent-a"))
	if err != nil || string(item) != "ent-a" {
		t.Fatalf("entity item = %q, err %v", item, err)
	}

	if _, ok := r.ReadManagerType(); ok {
		t.Error("expected body to be fully consumed")
	}
}

func TestWriterOmitsEmptySections(t *testing.T) {
	w := NewWriter()
	w.WriteEvent([]byte("solo"))

	r := NewReader(w.Bytes())
	kind, ok := r.ReadManagerType()
	if !ok || kind != ManagerEvent {
		t.Fatalf("section = (%v, %v), want (ManagerEvent, true)", kind, ok)
	}
	if _, err := r.ReadByte(); err != nil { // count
		t.Fatal(err)
	}
	if _, err := r.ReadBytes(len("solo")); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ReadManagerType(); ok {
		t.Error("expected no entity section to have been written")
	}
}

func TestWriterRejectsItemsOverMTUBudget(t *testing.T) {
	w := NewWriter()
	big := make([]byte, MaxPayloadBytes-sectionHeaderBytes)
	if !w.WriteEvent(big) {
		t.Fatal("expected an item exactly filling the budget to fit")
	}
	if w.WriteEvent([]byte{0}) {
		t.Error("expected a one-byte item to overflow the remaining budget")
	}
	if w.totalBytes > MaxPayloadBytes {
		t.Errorf("totalBytes = %d, exceeds MaxPayloadBytes", w.totalBytes)
	}
}

func TestWriterRejectsBeyond255ItemsPerSection(t *testing.T) {
	w := NewWriter()
	for i := 0; i < 255; i++ {
		if !w.WriteEvent([]byte{byte(i)}) {
			t.Fatalf("expected item %d to fit", i)
		}
	}
	if w.WriteEvent([]byte{0xFF}) {
		t.Error("expected the 256th item to be rejected (count byte caps at 255)")
	}
}

func TestWriterHasBytesReflectsContent(t *testing.T) {
	w := NewWriter()
	if w.HasBytes() {
		t.Error("expected empty writer to report no bytes")
	}
	w.WriteEntityMessage([]byte("x"))
	if !w.HasBytes() {
		t.Error("expected writer to report bytes after a write")
	}
}
