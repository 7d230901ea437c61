// Package client implements the client-side half of component I: the
// Disconnected -> AwaitingServerHandshake -> Connected state machine that
// drives a single Connection against one server address.
package client

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ventosilenzioso/netrelay/source/connection"
	"github.com/ventosilenzioso/netrelay/source/entities"
	"github.com/ventosilenzioso/netrelay/source/events"
	"github.com/ventosilenzioso/netrelay/source/protocol"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

// State is a node in the client's connection state machine.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingServerHandshake
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingServerHandshake:
		return "awaiting-server-handshake"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventKind tags the variant of an Event a Tick produces.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventData
)

// Event is the client's analogue of spec's ClientEvent: Connection,
// Disconnection or Event(T), surfaced to whatever drives Tick.
type Event struct {
	Kind EventKind
	Data events.Event
}

// Client owns the handshake timer and, once connected, the single
// Connection representing the server.
type Client struct {
	socket         transport.Socket
	serverAddr     net.Addr
	eventManifest  *events.Manifest
	entityManifest *entities.Manifest

	heartbeatInterval time.Duration
	timeoutDuration   time.Duration
	metrics           *connection.Metrics
	log               *logrus.Entry

	handshakeTimer         *protocol.Timer
	preConnectionTimestamp protocol.Timestamp

	state State
	conn  *connection.Connection
}

// New builds a Client that will attempt to reach serverAddr over socket.
// handshakeInterval is halved from heartbeatInterval per the handshake
// retry rule, giving the server two chances per heartbeat round.
func New(socket transport.Socket, serverAddr net.Addr, eventManifest *events.Manifest, entityManifest *entities.Manifest, heartbeatInterval, timeoutDuration time.Duration, metrics *connection.Metrics, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		socket:            socket,
		serverAddr:        serverAddr,
		eventManifest:     eventManifest,
		entityManifest:    entityManifest,
		heartbeatInterval: heartbeatInterval,
		timeoutDuration:   timeoutDuration,
		metrics:           metrics,
		log:               log,
		handshakeTimer:    protocol.NewTimer(heartbeatInterval / 2),
		state:             StateDisconnected,
	}
	c.preConnectionTimestamp = protocol.Now()
	c.handshakeTimer.RingManual()
	return c
}

// State reports the current node in the connection state machine.
func (c *Client) State() State { return c.state }

// Tick drains whatever the socket has waiting, advances the handshake or
// heartbeat clock as appropriate, and returns every Event this call
// produced. The caller is expected to invoke Tick on a steady cadence
// faster than 1/heartbeatInterval.
func (c *Client) Tick() []Event {
	var out []Event

	for {
		pkt, err := c.socket.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrNoPacket) {
				break
			}
			c.log.WithError(err).Warn("client: socket receive failed")
			break
		}
		out = append(out, c.handlePacket(pkt)...)
	}

	switch c.state {
	case StateDisconnected, StateAwaitingServerHandshake:
		if c.handshakeTimer.Ringing() {
			c.sendHandshake()
			c.handshakeTimer.Reset()
			c.state = StateAwaitingServerHandshake
		}
	case StateConnected:
		if c.conn.ShouldDrop() {
			c.log.WithField("server", c.serverAddr).Warn("client: server timed out")
			c.resetForReconnect()
			out = append(out, Event{Kind: EventDisconnected})
			break
		}
		c.tickConnected()
	}

	return out
}

func (c *Client) tickConnected() {
	if framed, ok := c.conn.GetOutgoingPacket(); ok {
		if err := c.socket.Send(c.serverAddr, framed); err != nil {
			c.log.WithError(err).Warn("client: send failed")
			return
		}
		c.conn.MarkSent()
		return
	}
	if c.conn.ShouldSendHeartbeat() {
		if err := c.socket.Send(c.serverAddr, c.conn.GetHeartbeatPacket()); err != nil {
			c.log.WithError(err).Warn("client: heartbeat send failed")
			return
		}
		c.conn.MarkSent()
	}
}

func (c *Client) sendHandshake() {
	w := protocol.NewByteWriter()
	c.preConnectionTimestamp.Write(w)
	frame := protocol.EncodeConnectionless(protocol.PacketHandshakeClient, w.Bytes())
	if err := c.socket.Send(c.serverAddr, frame); err != nil {
		c.log.WithError(err).Warn("client: handshake send failed")
	}
}

// resetForReconnect returns the client to Disconnected with a fresh
// pre-connection timestamp, as if it were restarting the handshake from
// scratch (the same timestamp must never be reused across connections once
// one has fully died, or the server's replace-on-mismatch path can never
// tell a genuine restart from a resend).
func (c *Client) resetForReconnect() {
	c.conn = nil
	c.state = StateDisconnected
	c.preConnectionTimestamp = protocol.Now()
	c.handshakeTimer.RingManual()
}

func (c *Client) handlePacket(pkt transport.Packet) []Event {
	typ, err := protocol.DecodePacketType(pkt.Data)
	if err != nil {
		return nil
	}

	switch c.state {
	case StateAwaitingServerHandshake:
		return c.handleHandshakeReply(typ, pkt)
	case StateConnected:
		return c.handleConnectedPacket(typ, pkt)
	default:
		return nil
	}
}

func (c *Client) handleHandshakeReply(typ protocol.PacketType, pkt transport.Packet) []Event {
	if typ != protocol.PacketHandshakeServer {
		return nil
	}
	_, body, err := protocol.DecodeConnectionless(pkt.Data)
	if err != nil {
		return nil
	}
	r := protocol.NewByteReader(body)
	ts, err := protocol.ReadTimestamp(r)
	if err != nil || ts != c.preConnectionTimestamp {
		return nil
	}

	c.conn = connection.NewClientSide(pkt.Addr, ts, c.eventManifest, c.entityManifest, c.heartbeatInterval, c.timeoutDuration, c.metrics)
	c.state = StateConnected
	c.log.WithField("server", pkt.Addr).Info("client: handshake accepted")
	return []Event{{Kind: EventConnected}}
}

func (c *Client) handleConnectedPacket(typ protocol.PacketType, pkt transport.Packet) []Event {
	if typ.IsConnectionless() {
		return nil
	}
	remoteSeq, body, err := c.conn.ProcessIncoming(pkt.Data)
	if err != nil {
		c.log.WithError(err).Warn("client: malformed packet from server")
		return nil
	}
	if err := c.conn.ProcessData(remoteSeq, body); err != nil {
		c.log.WithError(err).Warn("client: malformed data section")
		return nil
	}

	var out []Event
	for {
		e, ok := c.conn.PopIncomingEvent()
		if !ok {
			break
		}
		out = append(out, Event{Kind: EventData, Data: e})
	}
	return out
}

// QueueEvent hands e to the active Connection's outgoing event queue. A
// no-op before the handshake completes.
func (c *Client) QueueEvent(e events.Event) {
	if c.conn != nil {
		c.conn.QueueEvent(e)
	}
}

// PopIncomingEntityMessage returns the oldest queued Create/Update/Delete
// applied by the client-side entity manager, if any.
func (c *Client) PopIncomingEntityMessage() (entities.ClientMessage, bool) {
	if c.conn == nil {
		return entities.ClientMessage{}, false
	}
	return c.conn.PopIncomingEntityMessage()
}
