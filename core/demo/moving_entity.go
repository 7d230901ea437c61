// Package demo wires a small circular-motion simulation over the host
// loops, enough to exercise every wire path (handshake, events, entity
// replication) end to end over loopback UDP sockets.
package demo

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/entities"
	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// MovingEntityVariant is the sole entity variant this demo registers.
const MovingEntityVariant entities.VariantTag = 1

const movingEntityFieldCount = 4

// field bit positions within MovingEntity's dirty mask.
const (
	fieldX = iota
	fieldY
	fieldZ
	fieldRotation
)

// MovingEntity is a position+heading replicated object, the generic stand-in
// for the vehicle position/rotation state a game server fans out to every
// observer.
type MovingEntity struct {
	X, Y, Z  float32
	Rotation float32
}

func (e *MovingEntity) VariantTag() entities.VariantTag { return MovingEntityVariant }

func (e *MovingEntity) FieldCount() int { return movingEntityFieldCount }

// WriteFull writes every field in order, used for a Create message.
func (e *MovingEntity) WriteFull(w *protocol.ByteWriter) {
	w.WriteFloat32(e.X)
	w.WriteFloat32(e.Y)
	w.WriteFloat32(e.Z)
	w.WriteFloat32(e.Rotation)
}

// WritePartial writes only the fields mask marks dirty, in ascending bit
// order, for an Update message.
func (e *MovingEntity) WritePartial(mask entities.StateMask, w *protocol.ByteWriter) {
	if mask.IsSet(fieldX) {
		w.WriteFloat32(e.X)
	}
	if mask.IsSet(fieldY) {
		w.WriteFloat32(e.Y)
	}
	if mask.IsSet(fieldZ) {
		w.WriteFloat32(e.Z)
	}
	if mask.IsSet(fieldRotation) {
		w.WriteFloat32(e.Rotation)
	}
}

// ReadPartial applies whatever fields mask marks dirty, in the same order
// WritePartial wrote them.
func (e *MovingEntity) ReadPartial(mask entities.StateMask, r *protocol.ByteReader) error {
	if mask.IsSet(fieldX) {
		v, err := r.ReadFloat32()
		if err != nil {
			return errors.Wrap(err, "moving entity: read x")
		}
		e.X = v
	}
	if mask.IsSet(fieldY) {
		v, err := r.ReadFloat32()
		if err != nil {
			return errors.Wrap(err, "moving entity: read y")
		}
		e.Y = v
	}
	if mask.IsSet(fieldZ) {
		v, err := r.ReadFloat32()
		if err != nil {
			return errors.Wrap(err, "moving entity: read z")
		}
		e.Z = v
	}
	if mask.IsSet(fieldRotation) {
		v, err := r.ReadFloat32()
		if err != nil {
			return errors.Wrap(err, "moving entity: read rotation")
		}
		e.Rotation = v
	}
	return nil
}

// decodeMovingEntity reconstructs a MovingEntity from a Create message's
// full-state bytes.
func decodeMovingEntity(r *protocol.ByteReader) (entities.Entity, error) {
	e := &MovingEntity{}
	x, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "moving entity: decode x")
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "moving entity: decode y")
	}
	z, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "moving entity: decode z")
	}
	rot, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "moving entity: decode rotation")
	}
	e.X, e.Y, e.Z, e.Rotation = x, y, z, rot
	return e, nil
}

// NewEntityManifest registers every entity variant this demo knows about.
func NewEntityManifest() *entities.Manifest {
	m := entities.NewManifest()
	m.Register(MovingEntityVariant, decodeMovingEntity)
	return m
}
