package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ventosilenzioso/netrelay/source/protocol"
)

const chatEventID NaiaID = 1

type chatEvent struct {
	text string
}

func (c chatEvent) NaiaID() NaiaID { return chatEventID }

func (c chatEvent) Encode(w *protocol.ByteWriter) { w.WriteString(c.text) }

func decodeChatEvent(r *protocol.ByteReader) (Event, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return chatEvent{text: s}, nil
}

func newTestManifest() *Manifest {
	m := NewManifest()
	m.Register(chatEventID, decodeChatEvent)
	return m
}

func TestQueueAndPopOutgoingEvent(t *testing.T) {
	m := NewManager(newTestManifest())
	m.QueueOutgoingEvent(chatEvent{text: "hi"})

	require.True(t, m.PendingOutgoing())

	item, handle, ok := m.PopOutgoingEvent(7)
	require.True(t, ok)
	require.NotEmpty(t, item)
	require.False(t, m.PendingOutgoing(), "record should be in flight, not poppable again")

	_, _, ok = m.PopOutgoingEvent(8)
	require.False(t, ok, "in-flight record must not be offered for a different packet")

	_ = handle
}

func TestUnpopReturnsRecordToQueue(t *testing.T) {
	m := NewManager(newTestManifest())
	m.QueueOutgoingEvent(chatEvent{text: "hi"})

	_, handle, ok := m.PopOutgoingEvent(1)
	require.True(t, ok)

	m.UnpopOutgoingEvent(1, handle)
	require.True(t, m.PendingOutgoing(), "unpop should make the record eligible again")

	_, _, ok = m.PopOutgoingEvent(2)
	require.True(t, ok)
}

func TestOnDeliveredRemovesAckedRecord(t *testing.T) {
	m := NewManager(newTestManifest())
	m.QueueOutgoingEvent(chatEvent{text: "hi"})
	_, _, ok := m.PopOutgoingEvent(3)
	require.True(t, ok)

	m.OnDelivered([]protocol.SequenceNumber{3})
	require.Empty(t, m.outgoing)
}

func TestOnLostReopensRecordForResend(t *testing.T) {
	m := NewManager(newTestManifest())
	m.QueueOutgoingEvent(chatEvent{text: "hi"})
	_, _, ok := m.PopOutgoingEvent(4)
	require.True(t, ok)
	require.False(t, m.PendingOutgoing())

	m.OnLost([]protocol.SequenceNumber{4})
	require.True(t, m.PendingOutgoing(), "a lost record must re-enter the pop candidates")

	item, _, ok := m.PopOutgoingEvent(5)
	require.True(t, ok)
	require.NotEmpty(t, item)
}

func TestProcessDataDecodesInOrderAndDedupsByPacketSeq(t *testing.T) {
	m := NewManager(newTestManifest())

	w := protocol.NewByteWriter()
	w.WriteUint16(chatEventID)
	chatEvent{text: "a"}.Encode(w)
	w.WriteUint16(chatEventID)
	chatEvent{text: "b"}.Encode(w)

	r := protocol.NewByteReader(w.Bytes())
	require.NoError(t, m.ProcessData(10, 2, r))

	ev1, ok := m.PopIncomingEvent()
	require.True(t, ok)
	require.Equal(t, chatEvent{text: "a"}, ev1)

	ev2, ok := m.PopIncomingEvent()
	require.True(t, ok)
	require.Equal(t, chatEvent{text: "b"}, ev2)

	_, ok = m.PopIncomingEvent()
	require.False(t, ok)

	// Replaying the exact same packet (duplicate delivery at the transport
	// layer) must decode without error but surface nothing new.
	r2 := protocol.NewByteReader(w.Bytes())
	require.NoError(t, m.ProcessData(10, 2, r2))
	_, ok = m.PopIncomingEvent()
	require.False(t, ok, "duplicate packet sequence must not resurface events")
}
