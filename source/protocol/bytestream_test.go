package protocol

import "testing"

func TestByteWriterReaderRoundTrip(t *testing.T) {
	w := NewByteWriter()
	w.WriteByte(0x42)
	w.WriteUint16(1234)
	w.WriteUint32(567890)
	w.WriteUint64(123456789012)
	w.WriteFloat32(3.5)
	w.WriteString("hello")

	r := NewByteReader(w.Bytes())

	if b, _ := r.ReadByte(); b != 0x42 {
		t.Errorf("byte = 0x%02X, want 0x42", b)
	}
	if v, _ := r.ReadUint16(); v != 1234 {
		t.Errorf("uint16 = %d, want 1234", v)
	}
	if v, _ := r.ReadUint32(); v != 567890 {
		t.Errorf("uint32 = %d, want 567890", v)
	}
	if v, _ := r.ReadUint64(); v != 123456789012 {
		t.Errorf("uint64 = %d, want 123456789012", v)
	}
	if v, _ := r.ReadFloat32(); v != 3.5 {
		t.Errorf("float32 = %v, want 3.5", v)
	}
	if s, _ := r.ReadString(); s != "hello" {
		t.Errorf("string = %q, want %q", s, "hello")
	}
	if r.HasMore() {
		t.Error("expected reader to be exhausted")
	}
}

func TestByteReaderOverflow(t *testing.T) {
	r := NewByteReader([]byte{0x01})
	if _, err := r.ReadUint32(); err == nil {
		t.Error("expected buffer overflow error")
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Type: PacketData, LocalSeq: 42, RemoteAck: 41, AckBitfield: 0xDEADBEEF}
	w := NewByteWriter()
	h.Encode(w)

	if w.Len() != SequencedHeaderSize {
		t.Fatalf("encoded header len = %d, want %d", w.Len(), SequencedHeaderSize)
	}

	decoded, err := DecodeHeader(NewByteReader(w.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != h {
		t.Errorf("decoded header = %+v, want %+v", decoded, h)
	}
}

func TestConnectionlessHeaderRoundTrip(t *testing.T) {
	framed := EncodeConnectionless(PacketHandshakeClient, []byte{1, 2, 3})
	if len(framed) != ConnectionlessHeaderSize+3 {
		t.Fatalf("framed len = %d, want %d", len(framed), ConnectionlessHeaderSize+3)
	}
	kind, body, err := DecodeConnectionless(framed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != PacketHandshakeClient {
		t.Errorf("kind = %v, want HandshakeClient", kind)
	}
	if string(body) != "\x01\x02\x03" {
		t.Errorf("body = %v, want [1 2 3]", body)
	}
}
