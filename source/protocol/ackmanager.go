package protocol

import "github.com/pkg/errors"

const ackWindowSize = 32

type sentEntry struct {
	acked bool
}

// AckManager is component D of the connection runtime: it frames outgoing
// packets with the sequence/ack header, and turns an incoming header into
// the set of our own outgoing sequences that have now been acknowledged or
// declared lost. It never touches the event or entity managers directly —
// per the connection's delivery-observer wiring, Connection forwards the
// Acked/Lost results it returns on to whoever needs them.
type AckManager struct {
	localSeq      SequenceNumber
	remoteSeq     SequenceNumber
	remoteAckBits uint32
	haveRemote    bool

	sentPackets     *SequenceBuffer[sentEntry]
	receivedPackets *SequenceBuffer[struct{}]

	lossFloor    SequenceNumber
	haveLossFloor bool
}

// NewAckManager returns a fresh manager with local_seq starting at 0.
func NewAckManager() *AckManager {
	return &AckManager{
		sentPackets:     NewSequenceBuffer[sentEntry](SequenceBufferCapacity),
		receivedPackets: NewSequenceBuffer[struct{}](SequenceBufferCapacity),
	}
}

// LocalSequenceNumber returns the sequence number that will be assigned to
// the next outgoing packet (exposed for diagnostics/metrics).
func (a *AckManager) LocalSequenceNumber() SequenceNumber { return a.localSeq }

// ProcessOutgoing assigns the next local sequence number to body, records it
// as sent, and returns the fully framed (header + body) packet.
func (a *AckManager) ProcessOutgoing(t PacketType, body []byte) []byte {
	seq := a.localSeq
	a.sentPackets.Insert(seq, sentEntry{})

	w := NewByteWriter()
	Header{
		Type:        t,
		LocalSeq:    seq,
		RemoteAck:   a.remoteSeq,
		AckBitfield: a.remoteAckBits,
	}.Encode(w)
	w.WriteBytes(body)

	a.localSeq++
	return w.Bytes()
}

// ProcessIncoming strips the header off data, updates the receive-side
// tracking used to build our own future ack fields, and returns the sender's
// sequence number, the body, and the sequences of our own sent packets that
// have newly transitioned to acked or lost.
func (a *AckManager) ProcessIncoming(data []byte) (remoteSeq SequenceNumber, body []byte, acked []SequenceNumber, lost []SequenceNumber, err error) {
	r := NewByteReader(data)
	header, err := DecodeHeader(r)
	if err != nil {
		return 0, nil, nil, nil, errors.Wrap(err, "decode packet header")
	}
	rest, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return 0, nil, nil, nil, errors.Wrap(err, "read packet body")
	}

	a.observeReceived(header.LocalSeq)
	acked = a.collectAcked(header.RemoteAck, header.AckBitfield)
	lost = a.collectLost(header.RemoteAck)

	return header.LocalSeq, rest, acked, lost, nil
}

// observeReceived folds a newly-seen remote sequence number into the
// receive-side window we report back to the peer as RemoteAck/AckBitfield.
func (a *AckManager) observeReceived(seq SequenceNumber) {
	a.receivedPackets.Insert(seq, struct{}{})

	if !a.haveRemote || SequenceGreaterThan(seq, a.remoteSeq) {
		a.remoteSeq = seq
		var bits uint32
		for i := 1; i <= ackWindowSize; i++ {
			prior := seq - SequenceNumber(i)
			if a.receivedPackets.Contains(prior) {
				bits |= 1 << uint(i-1)
			}
		}
		a.remoteAckBits = bits
		a.haveRemote = true
		return
	}

	gap := SequenceDiff(a.remoteSeq, seq)
	if gap >= 1 && gap <= ackWindowSize {
		a.remoteAckBits |= 1 << uint(gap-1)
	}
}

// collectAcked returns the sent sequences newly confirmed delivered by the
// peer's remoteAck/ackBits, marking them acked so they are reported only
// once.
func (a *AckManager) collectAcked(remoteAck SequenceNumber, ackBits uint32) []SequenceNumber {
	var acked []SequenceNumber

	markIfUnacked := func(seq SequenceNumber) {
		entry, ok := a.sentPackets.Get(seq)
		if !ok || entry.acked {
			return
		}
		entry.acked = true
		a.sentPackets.Insert(seq, entry)
		acked = append(acked, seq)
	}

	markIfUnacked(remoteAck)
	for i := 1; i <= ackWindowSize; i++ {
		if ackBits&(1<<uint(i-1)) != 0 {
			markIfUnacked(remoteAck - SequenceNumber(i))
		}
	}
	return acked
}

// collectLost reports, at most once each, any sent sequence that has fallen
// out of the 33-sequence ack window (remoteAck plus the 32 bits behind it)
// since the previous call without ever being acked.
func (a *AckManager) collectLost(remoteAck SequenceNumber) []SequenceNumber {
	newFloor := remoteAck - SequenceNumber(ackWindowSize)

	if !a.haveLossFloor {
		a.lossFloor = newFloor
		a.haveLossFloor = true
		return nil
	}

	if !SequenceGreaterThan(newFloor, a.lossFloor) {
		return nil
	}

	steps := SequenceDiff(newFloor, a.lossFloor)
	if steps > SequenceBufferCapacity {
		steps = SequenceBufferCapacity
	}

	var lost []SequenceNumber
	seq := a.lossFloor
	for i := 0; i < steps; i++ {
		if entry, ok := a.sentPackets.Get(seq); ok && !entry.acked {
			lost = append(lost, seq)
			a.sentPackets.Remove(seq)
		}
		seq++
	}
	a.lossFloor = newFloor
	return lost
}
