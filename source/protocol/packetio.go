package protocol

// ManagerType tags which manager a body section belongs to.
type ManagerType byte

const (
	ManagerEvent  ManagerType = 1
	ManagerEntity ManagerType = 2
)

// MaxPayloadBytes is the MTU target for a packet body, after the 9-byte
// sequenced header has been accounted for.
const MaxPayloadBytes = 508

// sectionHeaderBytes is the manager_type + count prefix of a non-empty
// section.
const sectionHeaderBytes = 2

// Writer assembles a Data packet body out of event and entity sections,
// rejecting items that would overflow the MTU budget so the caller can push
// them back onto the owning manager's queue.
type Writer struct {
	eventItems  [][]byte
	entityItems [][]byte
	totalBytes  int
	maxBytes    int
}

// NewWriter returns an empty packet body writer using the default MTU
// budget (MaxPayloadBytes).
func NewWriter() *Writer {
	return NewWriterWithBudget(MaxPayloadBytes)
}

// NewWriterWithBudget returns an empty packet body writer using maxBytes as
// its MTU budget, for deployments that tune Config.MTU away from the
// default.
func NewWriterWithBudget(maxBytes int) *Writer {
	return &Writer{maxBytes: maxBytes}
}

// WriteEvent appends an already-encoded event item (naia_id + payload). It
// returns false, without mutating the writer, if the item would not fit
// within the writer's byte budget (MaxPayloadBytes for NewWriter) or the
// section has already reached 255 items (the count field is a single byte).
func (w *Writer) WriteEvent(item []byte) bool {
	return w.writeItem(&w.eventItems, item)
}

// WriteEntityMessage appends an already-encoded entity message item.
func (w *Writer) WriteEntityMessage(item []byte) bool {
	return w.writeItem(&w.entityItems, item)
}

func (w *Writer) writeItem(section *[][]byte, item []byte) bool {
	if len(*section) >= 255 {
		return false
	}
	projected := w.totalBytes + len(item)
	if len(*section) == 0 {
		projected += sectionHeaderBytes
	}
	if projected > w.maxBytes {
		return false
	}
	*section = append(*section, item)
	w.totalBytes = projected
	return true
}

// HasBytes reports whether anything has been written yet.
func (w *Writer) HasBytes() bool {
	return len(w.eventItems) > 0 || len(w.entityItems) > 0
}

// Bytes renders the final packet body: each non-empty section prefixed by
// its manager type and item count.
func (w *Writer) Bytes() []byte {
	bw := NewByteWriter()
	writeSection(bw, ManagerEvent, w.eventItems)
	writeSection(bw, ManagerEntity, w.entityItems)
	return bw.Bytes()
}

func writeSection(bw *ByteWriter, kind ManagerType, items [][]byte) {
	if len(items) == 0 {
		return
	}
	bw.WriteByte(byte(kind))
	bw.WriteByte(byte(len(items)))
	for _, item := range items {
		bw.WriteBytes(item)
	}
}

// Reader walks the manager-tagged sections of a Data packet body. After
// ReadManagerType, the caller reads the section's count byte and hands the
// count to the owning manager, which reads that many items.
type Reader struct {
	*ByteReader
}

// NewReader wraps a packet body for section-by-section reading.
func NewReader(body []byte) *Reader {
	return &Reader{ByteReader: NewByteReader(body)}
}

// ReadManagerType reads the next section's manager-type tag, or ok=false if
// the body has been fully consumed.
func (r *Reader) ReadManagerType() (kind ManagerType, ok bool) {
	if !r.HasMore() {
		return 0, false
	}
	b, err := r.ReadByte()
	if err != nil {
		return 0, false
	}
	return ManagerType(b), true
}
