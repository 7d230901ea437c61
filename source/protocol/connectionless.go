package protocol

// EncodeConnectionless frames a handshake body with the 1-byte
// connectionless header (packet type only, no sequence/ack fields).
func EncodeConnectionless(t PacketType, body []byte) []byte {
	w := NewByteWriter()
	WriteConnectionlessHeader(w, t)
	w.WriteBytes(body)
	return w.Bytes()
}

// DecodeConnectionless splits a connectionless frame into its packet type
// and body.
func DecodeConnectionless(data []byte) (PacketType, []byte, error) {
	if len(data) < 1 {
		return 0, nil, ErrBufferOverflow
	}
	return PacketType(data[0]), data[1:], nil
}
