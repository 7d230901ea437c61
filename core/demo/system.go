package demo

import (
	"math"
	"net"

	"github.com/ventosilenzioso/netrelay/source/entities"
)

// Broadcaster is the slice of Server the MovingSystem needs: per-peer
// entity fan-out plus the dirty-bit notification every field mutation
// goes through.
type Broadcaster interface {
	AddEntity(addr net.Addr, key entities.EntityKey, e entities.Entity) bool
	MarkEntityDirty(key entities.EntityKey, bit int)
	RemoveEntity(key entities.EntityKey)
}

// trackedEntity is one spawned MovingEntity plus the orbit it follows.
type trackedEntity struct {
	entity *MovingEntity
	radius float32
	angle  float64
	speed  float64
}

// MovingSystem drives every spawned MovingEntity around a fixed circular
// path and reports the resulting position/rotation changes through a
// Broadcaster, the generic stand-in for a gamemode's per-tick vehicle
// position sync.
type MovingSystem struct {
	broadcaster Broadcaster
	entities    map[entities.EntityKey]*trackedEntity
	nextKey     entities.EntityKey
}

// NewMovingSystem returns an empty system fanning out through broadcaster.
func NewMovingSystem(broadcaster Broadcaster) *MovingSystem {
	return &MovingSystem{
		broadcaster: broadcaster,
		entities:    make(map[entities.EntityKey]*trackedEntity),
		nextKey:     1,
	}
}

// Spawn creates a new MovingEntity centered on the origin at distance
// radius, moving at speed radians per tick, and offers it to addr.
func (s *MovingSystem) Spawn(addr net.Addr, radius float32, speed float64) entities.EntityKey {
	key := s.nextKey
	s.nextKey++

	e := &MovingEntity{X: radius, Y: 0, Z: 0, Rotation: 0}
	s.entities[key] = &trackedEntity{entity: e, radius: radius, speed: speed}
	s.broadcaster.AddEntity(addr, key, e)
	return key
}

// Despawn removes key from every peer.
func (s *MovingSystem) Despawn(key entities.EntityKey) {
	if _, ok := s.entities[key]; !ok {
		return
	}
	delete(s.entities, key)
	s.broadcaster.RemoveEntity(key)
}

// Tick advances every tracked entity one step along its orbit and marks
// the fields that changed dirty.
func (s *MovingSystem) Tick() {
	for key, t := range s.entities {
		t.angle += t.speed
		t.entity.X = t.radius * float32(math.Cos(t.angle))
		t.entity.Y = t.radius * float32(math.Sin(t.angle))
		t.entity.Rotation = float32(t.angle)

		s.broadcaster.MarkEntityDirty(key, fieldX)
		s.broadcaster.MarkEntityDirty(key, fieldY)
		s.broadcaster.MarkEntityDirty(key, fieldRotation)
	}
}

// Count reports how many entities are currently tracked.
func (s *MovingSystem) Count() int { return len(s.entities) }
