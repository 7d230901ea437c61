package protocol

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrBufferOverflow is returned by every Read* method once the cursor would
// have to move past the end of the underlying slice.
var ErrBufferOverflow = errors.New("protocol: buffer overflow")

// ByteWriter accumulates a big-endian byte stream. It is the write half of
// the wire codec every manager in this package uses to build packet bodies.
type ByteWriter struct {
	data []byte
}

// NewByteWriter returns an empty writer.
func NewByteWriter() *ByteWriter {
	return &ByteWriter{data: make([]byte, 0, 64)}
}

func (w *ByteWriter) WriteByte(b byte) { w.data = append(w.data, b) }

func (w *ByteWriter) WriteBytes(b []byte) { w.data = append(w.data, b...) }

func (w *ByteWriter) WriteUint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.data = append(w.data, buf[:]...)
}

func (w *ByteWriter) WriteUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.data = append(w.data, buf[:]...)
}

func (w *ByteWriter) WriteUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.data = append(w.data, buf[:]...)
}

func (w *ByteWriter) WriteFloat32(f float32) { w.WriteUint32(math.Float32bits(f)) }

func (w *ByteWriter) WriteFloat64(f float64) { w.WriteUint64(math.Float64bits(f)) }

// WriteString writes a u16 length prefix followed by the raw bytes.
func (w *ByteWriter) WriteString(s string) {
	w.WriteUint16(uint16(len(s)))
	w.data = append(w.data, s...)
}

func (w *ByteWriter) Bytes() []byte { return w.data }

func (w *ByteWriter) Len() int { return len(w.data) }

// ByteReader is the read half, a cursor over an immutable byte slice.
type ByteReader struct {
	data   []byte
	offset int
}

func NewByteReader(data []byte) *ByteReader {
	return &ByteReader{data: data}
}

func (r *ByteReader) Remaining() int { return len(r.data) - r.offset }

func (r *ByteReader) HasMore() bool { return r.Remaining() > 0 }

func (r *ByteReader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrBufferOverflow
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *ByteReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrBufferOverflow
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *ByteReader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *ByteReader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *ByteReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *ByteReader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *ByteReader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *ByteReader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
