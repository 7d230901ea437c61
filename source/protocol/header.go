package protocol

import "github.com/pkg/errors"

// PacketType identifies the kind of frame on the wire. Values are fixed by
// the wire protocol and must never change once deployed.
type PacketType byte

const (
	PacketHandshakeClient PacketType = 0
	PacketHandshakeServer PacketType = 1
	PacketData            PacketType = 2
	PacketHeartbeat       PacketType = 3
	PacketPing            PacketType = 4
	PacketPong            PacketType = 5
)

func (t PacketType) String() string {
	switch t {
	case PacketHandshakeClient:
		return "HandshakeClient"
	case PacketHandshakeServer:
		return "HandshakeServer"
	case PacketData:
		return "Data"
	case PacketHeartbeat:
		return "Heartbeat"
	case PacketPing:
		return "Ping"
	case PacketPong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// IsConnectionless reports whether this packet type is exchanged before a
// Connection exists (handshake only), and therefore carries the 1-byte
// header instead of the full 9-byte sequenced header.
func (t PacketType) IsConnectionless() bool {
	return t == PacketHandshakeClient || t == PacketHandshakeServer
}

// HeaderSize in bytes for sequenced vs connectionless packets.
const (
	SequencedHeaderSize     = 9
	ConnectionlessHeaderSize = 1
)

// Header is the fixed, big-endian wire header for sequenced packets.
type Header struct {
	Type         PacketType
	LocalSeq     SequenceNumber
	RemoteAck    SequenceNumber
	AckBitfield  uint32
}

// Encode writes the 9-byte sequenced header.
func (h Header) Encode(w *ByteWriter) {
	w.WriteByte(byte(h.Type))
	w.WriteUint16(h.LocalSeq)
	w.WriteUint16(h.RemoteAck)
	w.WriteUint32(h.AckBitfield)
}

// DecodeHeader reads a 9-byte sequenced header from r.
func DecodeHeader(r *ByteReader) (Header, error) {
	typeByte, err := r.ReadByte()
	if err != nil {
		return Header{}, errors.Wrap(err, "read packet type")
	}
	localSeq, err := r.ReadUint16()
	if err != nil {
		return Header{}, errors.Wrap(err, "read local seq")
	}
	remoteAck, err := r.ReadUint16()
	if err != nil {
		return Header{}, errors.Wrap(err, "read remote ack")
	}
	bits, err := r.ReadUint32()
	if err != nil {
		return Header{}, errors.Wrap(err, "read ack bitfield")
	}
	return Header{
		Type:        PacketType(typeByte),
		LocalSeq:    localSeq,
		RemoteAck:   remoteAck,
		AckBitfield: bits,
	}, nil
}

// WriteConnectionlessHeader writes the 1-byte handshake header.
func WriteConnectionlessHeader(w *ByteWriter, t PacketType) {
	w.WriteByte(byte(t))
}

// DecodePacketType peeks the leading packet-type byte of any frame (used by
// host loops to dispatch before deciding whether a full header follows).
func DecodePacketType(data []byte) (PacketType, error) {
	if len(data) < 1 {
		return 0, ErrBufferOverflow
	}
	return PacketType(data[0]), nil
}
