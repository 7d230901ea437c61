// Package entities implements component G: authoritative-state replication
// with per-field dirty masks, in its server (owns the state) and client
// (mirrors it) variants.
package entities

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// EntityKey is the 16-bit id the server assigns an entity, stable for the
// lifetime of that entity on the wire.
type EntityKey = uint16

// VariantTag identifies an entity type in the manifest, analogous to an
// event's NaiaID.
type VariantTag = uint16

// Entity is the application-owned replicated object. FieldCount is the fixed
// width of its dirty-field bitset.
type Entity interface {
	VariantTag() VariantTag
	FieldCount() int
	WriteFull(w *protocol.ByteWriter)
	WritePartial(mask StateMask, w *protocol.ByteWriter)
	ReadPartial(mask StateMask, r *protocol.ByteReader) error
}

// EntityDecoder reconstructs a fresh instance of one variant from its full
// Create-message state.
type EntityDecoder func(r *protocol.ByteReader) (Entity, error)

// ErrUnknownVariantTag is returned when a Create message names a variant tag
// with no registered decoder.
var ErrUnknownVariantTag = errors.New("entities: unknown variant tag")

// Manifest maps variant tags to decoders, mirroring events.Manifest.
type Manifest struct {
	decoders map[VariantTag]EntityDecoder
}

// NewManifest returns an empty entity manifest.
func NewManifest() *Manifest {
	return &Manifest{decoders: make(map[VariantTag]EntityDecoder)}
}

// Register associates a decoder with a variant tag.
func (m *Manifest) Register(tag VariantTag, dec EntityDecoder) {
	m.decoders[tag] = dec
}

func (m *Manifest) decode(tag VariantTag, r *protocol.ByteReader) (Entity, error) {
	dec, ok := m.decoders[tag]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownVariantTag, "tag %d", tag)
	}
	return dec(r)
}
