package entities

import "github.com/ventosilenzioso/netrelay/source/protocol"

// entityRecord is one entity as seen by a single peer's ServerManager:
// its live dirty mask plus in-flight tracking for each message kind.
type entityRecord struct {
	key    EntityKey
	entity Entity
	mask   StateMask

	createSentIn  map[protocol.SequenceNumber]struct{}
	creationAcked bool

	updateInFlight bool
	updateSeq      protocol.SequenceNumber
	updateSnapshot StateMask
	pendingMask    StateMask

	deleteQueued bool
	deleteSentIn map[protocol.SequenceNumber]struct{}
}

// ServerManager is component G's server variant: one instance per connected
// peer, tracking that peer's Create/Update/Delete message state for every
// entity currently (or recently) in scope.
type ServerManager struct {
	records map[EntityKey]*entityRecord
	order   []EntityKey
}

// NewServerManager returns an empty per-peer server entity manager.
func NewServerManager() *ServerManager {
	return &ServerManager{records: make(map[EntityKey]*entityRecord)}
}

// AddEntity marks e fully dirty for this peer and enqueues a Create message.
func (m *ServerManager) AddEntity(key EntityKey, e Entity) {
	mask := NewStateMask(e.FieldCount())
	for i := 0; i < e.FieldCount(); i++ {
		mask.Set(i)
	}
	m.records[key] = &entityRecord{
		key:          key,
		entity:       e,
		mask:         mask,
		pendingMask:  NewStateMask(e.FieldCount()),
		createSentIn: make(map[protocol.SequenceNumber]struct{}),
		deleteSentIn: make(map[protocol.SequenceNumber]struct{}),
	}
	m.order = append(m.order, key)
}

// MarkDirty sets field bit dirty for key, the per-peer fan-out target the
// application's MutHandler calls into on every mutation. If an Update is
// already in flight, bit is also recorded in pendingMask: the entity's live
// value has moved again since that Update's snapshot was taken, so an ack
// for the in-flight packet must not be allowed to clear bit on its own.
func (m *ServerManager) MarkDirty(key EntityKey, bit int) {
	rec, ok := m.records[key]
	if !ok {
		return
	}
	rec.mask.Set(bit)
	if rec.updateInFlight {
		rec.pendingMask.Set(bit)
	}
}

// RemoveEntity enqueues a Delete message. If Create was never even attempted
// yet, the entity is purged silently since the peer never learned of it.
func (m *ServerManager) RemoveEntity(key EntityKey) {
	rec, ok := m.records[key]
	if !ok {
		return
	}
	if len(rec.createSentIn) == 0 && !rec.creationAcked {
		m.purge(key)
		return
	}
	rec.deleteQueued = true
	rec.updateInFlight = false
}

func (m *ServerManager) purge(key EntityKey) {
	delete(m.records, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// CollectEntityUpdates is a no-op kept to mirror the host loop's API shape;
// Connection does not call it. Eligibility is computed live inside
// PopOutgoingMessage, so there is no bookkeeping for it to do.
func (m *ServerManager) CollectEntityUpdates() {}

// OutgoingMessage is a framed entity message ready for the packet writer,
// carrying enough context for a later UnpopOutgoingMessage call.
type OutgoingMessage struct {
	Bytes []byte

	key    EntityKey
	action ActionTag
}

// PopOutgoingMessage returns the oldest eligible message across all tracked
// entities. Create must be acked before any Update or Delete for the same
// key is sent (so out-of-order UDP delivery can never apply an Update to an
// entity the peer hasn't created yet); a queued Delete supersedes any
// pending Update.
func (m *ServerManager) PopOutgoingMessage(seq protocol.SequenceNumber) (OutgoingMessage, bool) {
	for _, key := range m.order {
		rec, ok := m.records[key]
		if !ok {
			continue
		}

		if !rec.creationAcked {
			if len(rec.createSentIn) == 0 {
				rec.createSentIn[seq] = struct{}{}
				return OutgoingMessage{Bytes: encodeCreate(key, rec.entity), key: key, action: ActionCreate}, true
			}
			continue
		}

		if rec.deleteQueued {
			if len(rec.deleteSentIn) == 0 {
				rec.deleteSentIn[seq] = struct{}{}
				rec.updateInFlight = false
				return OutgoingMessage{Bytes: encodeDelete(key), key: key, action: ActionDelete}, true
			}
			continue
		}

		if !rec.updateInFlight && !rec.mask.IsEmpty() {
			snapshot := rec.mask.Clone()
			rec.updateInFlight = true
			rec.updateSeq = seq
			rec.updateSnapshot = snapshot
			return OutgoingMessage{Bytes: encodeUpdate(key, snapshot, rec.entity), key: key, action: ActionUpdate}, true
		}
	}
	return OutgoingMessage{}, false
}

// UnpopOutgoingMessage reverses the most recent pop for msg, used when the
// packet writer rejects it for want of space.
func (m *ServerManager) UnpopOutgoingMessage(seq protocol.SequenceNumber, msg OutgoingMessage) {
	rec, ok := m.records[msg.key]
	if !ok {
		return
	}
	switch msg.action {
	case ActionCreate:
		delete(rec.createSentIn, seq)
	case ActionDelete:
		delete(rec.deleteSentIn, seq)
	case ActionUpdate:
		if rec.updateInFlight && rec.updateSeq == seq {
			rec.updateInFlight = false
			rec.pendingMask.Clear()
		}
	}
}

// OnDelivered applies ack feedback: a Create ack marks creation acked; a
// Delete ack purges the record; an Update ack clears exactly the bits that
// packet's snapshot carried, per the invariant that state_mask is cleared
// only once a packet carrying all its then-dirty fields is acknowledged —
// except for any bit MarkDirty re-set while this Update was in flight
// (tracked in pendingMask), which is folded back in right after the
// AndNot so a mutation that arrived after the snapshot was taken is never
// silently acked away along with the value it superseded.
func (m *ServerManager) OnDelivered(acked []protocol.SequenceNumber) {
	var toPurge []EntityKey

	for _, seq := range acked {
		for _, key := range m.order {
			rec, ok := m.records[key]
			if !ok {
				continue
			}
			if _, in := rec.createSentIn[seq]; in {
				rec.creationAcked = true
			}
			if _, in := rec.deleteSentIn[seq]; in {
				toPurge = append(toPurge, key)
				continue
			}
			if rec.updateInFlight && rec.updateSeq == seq {
				rec.mask.AndNot(rec.updateSnapshot)
				rec.mask.Or(rec.pendingMask)
				rec.pendingMask.Clear()
				rec.updateInFlight = false
			}
		}
	}

	for _, key := range toPurge {
		m.purge(key)
	}
}

// OnLost retries Create/Delete verbatim (clearing the in-flight marker so
// the next pop resends it) and, for Update, ORs the lost snapshot back into
// the live mask so no field update is forgotten.
func (m *ServerManager) OnLost(lost []protocol.SequenceNumber) {
	for _, seq := range lost {
		for _, rec := range m.records {
			delete(rec.createSentIn, seq)
			delete(rec.deleteSentIn, seq)
			if rec.updateInFlight && rec.updateSeq == seq {
				rec.mask.Or(rec.updateSnapshot)
				rec.pendingMask.Clear()
				rec.updateInFlight = false
			}
		}
	}
}
