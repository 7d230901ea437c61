package entities

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// ActionTag distinguishes the three entity message shapes.
type ActionTag byte

const (
	ActionCreate ActionTag = 0
	ActionUpdate ActionTag = 1
	ActionDelete ActionTag = 2
)

// encodeCreate frames key:u16, variant_tag:u16, state_len:u16, full_state.
// The explicit length lets a peer skip a Create for an entity type it
// doesn't (yet) recognize without losing section framing.
func encodeCreate(key EntityKey, e Entity) []byte {
	state := protocol.NewByteWriter()
	e.WriteFull(state)

	w := protocol.NewByteWriter()
	w.WriteByte(byte(ActionCreate))
	w.WriteUint16(key)
	w.WriteUint16(e.VariantTag())
	w.WriteUint16(uint16(state.Len()))
	w.WriteBytes(state.Bytes())
	return w.Bytes()
}

// encodeUpdate frames key:u16, mask_len:u8, state_mask, state_len:u16,
// partial_state.
func encodeUpdate(key EntityKey, mask StateMask, e Entity) []byte {
	state := protocol.NewByteWriter()
	e.WritePartial(mask, state)

	w := protocol.NewByteWriter()
	w.WriteByte(byte(ActionUpdate))
	w.WriteUint16(key)
	w.WriteByte(byte(mask.ByteLen()))
	mask.WriteTo(w)
	w.WriteUint16(uint16(state.Len()))
	w.WriteBytes(state.Bytes())
	return w.Bytes()
}

// encodeDelete frames key:u16 only; nothing to skip, so no length prefix is
// needed.
func encodeDelete(key EntityKey) []byte {
	w := protocol.NewByteWriter()
	w.WriteByte(byte(ActionDelete))
	w.WriteUint16(key)
	return w.Bytes()
}

// SkipMessages consumes count entity message items off r without routing
// them anywhere, used by a connection side that has no entity manager
// registered to receive into (e.g. a server ignoring a stray entity section
// from a client) but still needs to keep the reader in sync for whatever
// section follows.
func SkipMessages(r *protocol.ByteReader, count int) error {
	for i := 0; i < count; i++ {
		if _, err := decodeMessage(r); err != nil {
			return errors.Wrapf(err, "skip entity message %d", i)
		}
	}
	return nil
}

// decodedMessage is one parsed entity message item, still unrouted.
type decodedMessage struct {
	action     ActionTag
	key        EntityKey
	variantTag VariantTag
	mask       StateMask
	stateBytes []byte
}

// decodeMessage reads one entity message item, honoring the length prefixes
// so the section stream stays in sync even when the key is unrecognized.
func decodeMessage(r *protocol.ByteReader) (decodedMessage, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return decodedMessage{}, errors.Wrap(err, "read action tag")
	}
	action := ActionTag(tagByte)

	key, err := r.ReadUint16()
	if err != nil {
		return decodedMessage{}, errors.Wrap(err, "read entity key")
	}

	switch action {
	case ActionCreate:
		variantTag, err := r.ReadUint16()
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read variant tag")
		}
		stateLen, err := r.ReadUint16()
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read state len")
		}
		state, err := r.ReadBytes(int(stateLen))
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read full state")
		}
		return decodedMessage{action: action, key: key, variantTag: variantTag, stateBytes: state}, nil

	case ActionUpdate:
		maskLen, err := r.ReadByte()
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read mask len")
		}
		mask, err := ReadStateMask(r, int(maskLen))
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read state mask")
		}
		stateLen, err := r.ReadUint16()
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read state len")
		}
		state, err := r.ReadBytes(int(stateLen))
		if err != nil {
			return decodedMessage{}, errors.Wrap(err, "read partial state")
		}
		return decodedMessage{action: action, key: key, mask: mask, stateBytes: state}, nil

	case ActionDelete:
		return decodedMessage{action: action, key: key}, nil

	default:
		return decodedMessage{}, errors.Errorf("entities: unknown action tag %d", tagByte)
	}
}
