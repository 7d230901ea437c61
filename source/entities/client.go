package entities

import "github.com/ventosilenzioso/netrelay/source/protocol"

type clientRecord struct {
	variantTag VariantTag
	entity     Entity
}

// ClientMessage is one decoded entity message surfaced to the application,
// in the order it was applied.
type ClientMessage struct {
	Action ActionTag
	Key    EntityKey
	Entity Entity
}

// ClientManager is component G's client variant: it mirrors whatever the
// server's ServerManager tells it about entity lifecycle and state.
type ClientManager struct {
	manifest *Manifest
	records  map[EntityKey]*clientRecord
	incoming []ClientMessage
}

// NewClientManager returns an empty client entity manager bound to manifest
// for constructing entities named in Create messages.
func NewClientManager(manifest *Manifest) *ClientManager {
	return &ClientManager{manifest: manifest, records: make(map[EntityKey]*clientRecord)}
}

// ProcessData reads count entity messages in order, applying Create/Update
// directly and queuing a ClientMessage for each for the application to pull.
// Unknown keys in Update or Delete are silently ignored: the length-prefixed
// wire layout lets the reader skip right past them, tolerating a Create that
// is still in flight behind a reordered Update or Delete.
func (m *ClientManager) ProcessData(r *protocol.ByteReader, count int) error {
	for i := 0; i < count; i++ {
		msg, err := decodeMessage(r)
		if err != nil {
			return err
		}

		switch msg.action {
		case ActionCreate:
			ent, err := m.manifest.decode(msg.variantTag, protocol.NewByteReader(msg.stateBytes))
			if err != nil {
				continue // unrecognized variant tag: skip, framing already consumed the bytes
			}
			m.records[msg.key] = &clientRecord{variantTag: msg.variantTag, entity: ent}
			m.incoming = append(m.incoming, ClientMessage{Action: ActionCreate, Key: msg.key, Entity: ent})

		case ActionUpdate:
			rec, ok := m.records[msg.key]
			if !ok {
				continue
			}
			if err := rec.entity.ReadPartial(msg.mask, protocol.NewByteReader(msg.stateBytes)); err != nil {
				return err
			}
			m.incoming = append(m.incoming, ClientMessage{Action: ActionUpdate, Key: msg.key, Entity: rec.entity})

		case ActionDelete:
			rec, ok := m.records[msg.key]
			if !ok {
				continue
			}
			delete(m.records, msg.key)
			m.incoming = append(m.incoming, ClientMessage{Action: ActionDelete, Key: msg.key, Entity: rec.entity})
		}
	}
	return nil
}

// PopIncomingMessage returns and removes the oldest queued ClientMessage.
func (m *ClientManager) PopIncomingMessage() (ClientMessage, bool) {
	if len(m.incoming) == 0 {
		return ClientMessage{}, false
	}
	msg := m.incoming[0]
	m.incoming = m.incoming[1:]
	return msg, true
}
