package protocol

import "time"

// Timestamp is a millisecond counter since the Unix epoch, the
// client-generated session identifier echoed during handshake. Equality is
// byte-exact; ordering is total.
type Timestamp uint64

// Now samples the wall clock.
func Now() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

// Write serializes the timestamp as 8 bytes big-endian.
func (t Timestamp) Write(w *ByteWriter) {
	w.WriteUint64(uint64(t))
}

// ReadTimestamp reads an 8-byte big-endian timestamp.
func ReadTimestamp(r *ByteReader) (Timestamp, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return Timestamp(v), nil
}
