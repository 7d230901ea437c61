// Package events implements component F: reliable, at-least-once delivery
// of application-defined event types over the connection runtime.
package events

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// NaiaID is the manifest-defined variant tag every event carries on the
// wire, ahead of its type-specific payload.
type NaiaID = uint16

// Event is anything the application can queue for reliable delivery to its
// peer. Encode writes only the type-specific payload; the manifest id is
// framed separately by the manager.
type Event interface {
	NaiaID() NaiaID
	Encode(w *protocol.ByteWriter)
}

// Decoder reconstructs one event variant's payload from the wire. It must
// consume exactly the bytes that variant wrote in Encode, since event
// framing has no explicit length prefix.
type Decoder func(r *protocol.ByteReader) (Event, error)

// ErrUnknownNaiaID is returned by Manifest.Decode when no decoder is
// registered for the id found on the wire.
var ErrUnknownNaiaID = errors.New("events: unknown naia id")

// Manifest maps wire ids to decoders, shared and stable between a client and
// server build (both sides register the same ids at startup).
type Manifest struct {
	decoders map[NaiaID]Decoder
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{decoders: make(map[NaiaID]Decoder)}
}

// Register associates a decoder with a wire id. Re-registering an id
// overwrites the previous decoder.
func (m *Manifest) Register(id NaiaID, dec Decoder) {
	m.decoders[id] = dec
}

// Decode reads a naia id off r and dispatches to its registered decoder.
func (m *Manifest) Decode(r *protocol.ByteReader) (Event, error) {
	id, err := r.ReadUint16()
	if err != nil {
		return nil, errors.Wrap(err, "read naia id")
	}
	dec, ok := m.decoders[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNaiaID, "id %d", id)
	}
	return dec(r)
}
