package events

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// outgoingRecord is one queued event, serialized once at queue time. sentIn
// tracks which in-flight packet sequence currently carries it; at-least-once
// delivery is achieved by only offering it for a new packet once that set is
// empty (never sent, or cleared back to empty by a loss notification).
type outgoingRecord struct {
	item   []byte
	sentIn map[protocol.SequenceNumber]struct{}
}

// Manager is component F: the outgoing/incoming event queues plus the
// delivery bookkeeping fed by the connection's ack observer.
type Manager struct {
	manifest *Manifest

	outgoing []*outgoingRecord
	incoming []Event

	seenInPacket *protocol.SequenceBuffer[map[uint8]struct{}]
}

// NewManager returns an empty event manager bound to manifest for decoding
// incoming events.
func NewManager(manifest *Manifest) *Manager {
	return &Manager{
		manifest:     manifest,
		seenInPacket: protocol.NewSequenceBuffer[map[uint8]struct{}](protocol.SequenceBufferCapacity),
	}
}

// QueueOutgoingEvent serializes e once and appends it to the outgoing
// queue with an empty sent_in set.
func (m *Manager) QueueOutgoingEvent(e Event) {
	w := protocol.NewByteWriter()
	w.WriteUint16(e.NaiaID())
	e.Encode(w)
	m.outgoing = append(m.outgoing, &outgoingRecord{
		item:   w.Bytes(),
		sentIn: make(map[protocol.SequenceNumber]struct{}),
	})
}

// OutgoingHandle identifies a record popped for inclusion in the packet
// currently being assembled, for a later UnpopOutgoingEvent call.
type OutgoingHandle struct {
	record *outgoingRecord
}

// PopOutgoingEvent returns the oldest not-in-flight record's wire bytes,
// marking it in-flight under seq. Returns ok=false once no event is eligible
// (every queued event is either in flight already or the queue is empty).
func (m *Manager) PopOutgoingEvent(seq protocol.SequenceNumber) (item []byte, handle OutgoingHandle, ok bool) {
	for _, rec := range m.outgoing {
		if len(rec.sentIn) > 0 {
			continue
		}
		if _, already := rec.sentIn[seq]; already {
			continue
		}
		rec.sentIn[seq] = struct{}{}
		return rec.item, OutgoingHandle{record: rec}, true
	}
	return nil, OutgoingHandle{}, false
}

// UnpopOutgoingEvent reverses the most recent PopOutgoingEvent(seq) call for
// handle, used when the packet writer rejects the item for want of space.
func (m *Manager) UnpopOutgoingEvent(seq protocol.SequenceNumber, handle OutgoingHandle) {
	if handle.record == nil {
		return
	}
	delete(handle.record.sentIn, seq)
}

// OnDelivered drops every outgoing record that was carried by any of the
// newly acked sequences.
func (m *Manager) OnDelivered(acked []protocol.SequenceNumber) {
	if len(acked) == 0 {
		return
	}
	ackedSet := make(map[protocol.SequenceNumber]struct{}, len(acked))
	for _, s := range acked {
		ackedSet[s] = struct{}{}
	}
	kept := m.outgoing[:0]
	for _, rec := range m.outgoing {
		delivered := false
		for s := range rec.sentIn {
			if _, ok := ackedSet[s]; ok {
				delivered = true
				break
			}
		}
		if !delivered {
			kept = append(kept, rec)
		}
	}
	m.outgoing = kept
}

// OnLost clears the in-flight marker for every outgoing record that was
// carried by a newly lost sequence, making it a pop candidate again.
func (m *Manager) OnLost(lost []protocol.SequenceNumber) {
	if len(lost) == 0 {
		return
	}
	for _, s := range lost {
		for _, rec := range m.outgoing {
			delete(rec.sentIn, s)
		}
	}
}

// PendingOutgoing reports whether any event is eligible to be popped right
// now. Connection.GetOutgoingPacket does not consult it; it pops until
// PopOutgoingEvent reports nothing eligible.
func (m *Manager) PendingOutgoing() bool {
	for _, rec := range m.outgoing {
		if len(rec.sentIn) == 0 {
			return true
		}
	}
	return false
}

// ProcessData decodes every event item in an Event section, in order,
// dropping duplicates already seen for this incoming packet sequence.
func (m *Manager) ProcessData(remoteSeq protocol.SequenceNumber, count int, r *protocol.ByteReader) error {
	seen, ok := m.seenInPacket.Get(remoteSeq)
	if !ok {
		seen = make(map[uint8]struct{}, count)
	}

	for i := 0; i < count; i++ {
		// Decode unconditionally even if this index turns out to be a
		// duplicate: event framing has no explicit length, so skipping the
		// decode would desync the reader for every item after it.
		ev, err := m.manifest.Decode(r)
		if err != nil {
			return errors.Wrapf(err, "decode event %d in packet %d", i, remoteSeq)
		}
		idx := uint8(i)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		m.incoming = append(m.incoming, ev)
	}

	m.seenInPacket.Insert(remoteSeq, seen)
	return nil
}

// PopIncomingEvent returns and removes the oldest decoded incoming event, in
// packet order.
func (m *Manager) PopIncomingEvent() (Event, bool) {
	if len(m.incoming) == 0 {
		return nil, false
	}
	ev := m.incoming[0]
	m.incoming = m.incoming[1:]
	return ev, true
}
