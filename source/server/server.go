// Package server implements the server-side half of component I: an
// address-indexed table of Connections, driven by connectionless
// Handshake-Client processing plus a per-tick pass over every live peer.
package server

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ventosilenzioso/netrelay/source/connection"
	"github.com/ventosilenzioso/netrelay/source/entities"
	"github.com/ventosilenzioso/netrelay/source/events"
	"github.com/ventosilenzioso/netrelay/source/protocol"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

// EventKind tags the variant of an Event a Tick produces, the server
// analogue of spec's ServerEvent.
type EventKind int

const (
	EventConnection EventKind = iota
	EventDisconnection
	EventData
)

// Event is one occurrence a Tick surfaces to the application.
type Event struct {
	Kind EventKind
	Addr net.Addr
	Data events.Event
}

// MetricsFactory builds a fresh set of per-connection Prometheus
// instruments for a newly accepted peer. A nil factory disables
// instrumentation.
type MetricsFactory func(addr net.Addr) *connection.Metrics

// Server owns one listening socket and every Connection accepted on it.
type Server struct {
	socket        transport.Socket
	eventManifest *events.Manifest

	heartbeatInterval time.Duration
	timeoutDuration   time.Duration

	handshakeLimiter *rate.Limiter
	metricsFactory   MetricsFactory
	log              *logrus.Entry

	connections map[string]*connection.Connection
}

// New builds a Server listening on socket. handshakeLimiter, if non-nil,
// throttles Handshake-Client processing so a flood of forged handshake
// datagrams cannot spin up unbounded connection state; a nil limiter
// accepts handshakes unconditionally.
func New(socket transport.Socket, eventManifest *events.Manifest, heartbeatInterval, timeoutDuration time.Duration, handshakeLimiter *rate.Limiter, metricsFactory MetricsFactory, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		socket:            socket,
		eventManifest:     eventManifest,
		heartbeatInterval: heartbeatInterval,
		timeoutDuration:   timeoutDuration,
		handshakeLimiter:  handshakeLimiter,
		metricsFactory:    metricsFactory,
		log:               log,
		connections:       make(map[string]*connection.Connection),
	}
}

// ConnectionCount reports how many peers are currently tracked.
func (s *Server) ConnectionCount() int { return len(s.connections) }

// ConnectionID returns addr's current Connection correlation id, for a
// caller (logging, a CLI banner) that wants to print it alongside the
// address.
func (s *Server) ConnectionID(addr net.Addr) (uuid.UUID, bool) {
	conn, ok := s.connections[addr.String()]
	if !ok {
		return uuid.UUID{}, false
	}
	return conn.ID, true
}

// Tick drains the socket, runs the handshake state machine for any
// Handshake-Client datagrams, routes sequenced packets to their owning
// Connection, advances every Connection's heartbeat/timeout clock, and
// returns every Event this call produced.
func (s *Server) Tick() []Event {
	var out []Event

	for {
		pkt, err := s.socket.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrNoPacket) {
				break
			}
			s.log.WithError(err).Warn("server: socket receive failed")
			break
		}
		out = append(out, s.handlePacket(pkt)...)
	}

	for key, conn := range s.connections {
		if conn.ShouldDrop() {
			s.log.WithField("addr", conn.Address).Info("server: connection timed out")
			delete(s.connections, key)
			out = append(out, Event{Kind: EventDisconnection, Addr: conn.Address})
			continue
		}
		s.tickConnection(conn)
	}

	return out
}

func (s *Server) tickConnection(conn *connection.Connection) {
	if framed, ok := conn.GetOutgoingPacket(); ok {
		if err := s.socket.Send(conn.Address, framed); err != nil {
			s.log.WithError(err).Warn("server: send failed")
			return
		}
		conn.MarkSent()
		return
	}
	if conn.ShouldSendHeartbeat() {
		if err := s.socket.Send(conn.Address, conn.GetHeartbeatPacket()); err != nil {
			s.log.WithError(err).Warn("server: heartbeat send failed")
			return
		}
		conn.MarkSent()
	}
}

func (s *Server) handlePacket(pkt transport.Packet) []Event {
	typ, err := protocol.DecodePacketType(pkt.Data)
	if err != nil {
		return nil
	}

	if typ == protocol.PacketHandshakeClient {
		return s.handleHandshake(pkt)
	}

	key := pkt.Addr.String()
	conn, ok := s.connections[key]
	if !ok {
		s.log.WithField("addr", pkt.Addr).Debug("server: sequenced packet from unknown peer, dropped")
		return nil
	}

	remoteSeq, body, err := conn.ProcessIncoming(pkt.Data)
	if err != nil {
		s.log.WithError(err).WithField("addr", pkt.Addr).Warn("server: malformed packet")
		return nil
	}
	if err := conn.ProcessData(remoteSeq, body); err != nil {
		s.log.WithError(err).WithField("addr", pkt.Addr).Warn("server: malformed data section")
		return nil
	}

	var out []Event
	for {
		e, ok := conn.PopIncomingEvent()
		if !ok {
			break
		}
		out = append(out, Event{Kind: EventData, Addr: pkt.Addr, Data: e})
	}
	return out
}

func (s *Server) handleHandshake(pkt transport.Packet) []Event {
	if s.handshakeLimiter != nil && !s.handshakeLimiter.Allow() {
		s.log.WithField("addr", pkt.Addr).Debug("server: handshake rate-limited")
		return nil
	}

	_, body, err := protocol.DecodeConnectionless(pkt.Data)
	if err != nil {
		return nil
	}
	r := protocol.NewByteReader(body)
	ts, err := protocol.ReadTimestamp(r)
	if err != nil {
		return nil
	}

	key := pkt.Addr.String()
	existing, ok := s.connections[key]

	switch {
	case !ok:
		conn := s.newConnection(pkt.Addr, ts)
		s.connections[key] = conn
		s.replyHandshake(pkt.Addr, ts)
		s.log.WithField("addr", pkt.Addr).Info("server: accepted new connection")
		return []Event{{Kind: EventConnection, Addr: pkt.Addr}}

	case existing.Timestamp == ts:
		// Same client retrying before it saw our first reply; idempotent.
		s.replyHandshake(pkt.Addr, ts)
		return nil

	default:
		// Different timestamp from a known address: the client restarted
		// without the server ever seeing it time out. Replace the stale
		// connection rather than let it linger with a dead peer.
		s.log.WithField("addr", pkt.Addr).Info("server: handshake mismatch, replacing connection")
		conn := s.newConnection(pkt.Addr, ts)
		s.connections[key] = conn
		s.replyHandshake(pkt.Addr, ts)
		return []Event{
			{Kind: EventDisconnection, Addr: pkt.Addr},
			{Kind: EventConnection, Addr: pkt.Addr},
		}
	}
}

func (s *Server) newConnection(addr net.Addr, ts protocol.Timestamp) *connection.Connection {
	var metrics *connection.Metrics
	if s.metricsFactory != nil {
		metrics = s.metricsFactory(addr)
	}
	return connection.NewServerSide(addr, ts, s.eventManifest, s.heartbeatInterval, s.timeoutDuration, metrics)
}

func (s *Server) replyHandshake(addr net.Addr, ts protocol.Timestamp) {
	w := protocol.NewByteWriter()
	ts.Write(w)
	frame := protocol.EncodeConnectionless(protocol.PacketHandshakeServer, w.Bytes())
	if err := s.socket.Send(addr, frame); err != nil {
		s.log.WithError(err).WithField("addr", addr).Warn("server: handshake reply send failed")
	}
}

// QueueEvent hands e to addr's outgoing event queue, a no-op if addr is not
// a currently connected peer.
func (s *Server) QueueEvent(addr net.Addr, e events.Event) bool {
	conn, ok := s.connections[addr.String()]
	if !ok {
		return false
	}
	conn.QueueEvent(e)
	return true
}

// Broadcast queues e for every connected peer.
func (s *Server) Broadcast(e events.Event) {
	for _, conn := range s.connections {
		conn.QueueEvent(e)
	}
}

// AddEntity enqueues a Create of key toward addr.
func (s *Server) AddEntity(addr net.Addr, key entities.EntityKey, e entities.Entity) bool {
	conn, ok := s.connections[addr.String()]
	if !ok {
		return false
	}
	conn.AddEntity(key, e)
	return true
}

// MarkEntityDirty sets field bit dirty for key toward every connected peer,
// the target of an application MutHandler fan-out.
func (s *Server) MarkEntityDirty(key entities.EntityKey, bit int) {
	for _, conn := range s.connections {
		conn.MarkEntityDirty(key, bit)
	}
}

// RemoveEntity enqueues a Delete of key toward every connected peer.
func (s *Server) RemoveEntity(key entities.EntityKey) {
	for _, conn := range s.connections {
		conn.RemoveEntity(key)
	}
}
