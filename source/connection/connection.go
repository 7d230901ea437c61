// Package connection implements component H: the per-peer aggregate of the
// ack manager, event manager, entity manager, and heartbeat/timeout timers.
package connection

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ventosilenzioso/netrelay/source/entities"
	"github.com/ventosilenzioso/netrelay/source/events"
	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// Connection owns one peer's ack/event/entity state plus its heartbeat and
// timeout timers. Exactly one of ServerEntities or ClientEntities is set,
// depending on which side of the handshake this Connection represents.
type Connection struct {
	ID        uuid.UUID
	Address   net.Addr
	Timestamp protocol.Timestamp

	ack    *protocol.AckManager
	events *events.Manager

	ServerEntities *entities.ServerManager
	ClientEntities *entities.ClientManager

	heartbeatTimer *protocol.Timer
	timeoutTimer   *protocol.Timer

	metrics         *Metrics
	maxPayloadBytes int
}

// Metrics is the set of per-connection Prometheus observations a Connection
// updates as it processes traffic. A nil *Metrics disables instrumentation.
// Connection updates PacketsSent, PacketsAcked and PacketsLost; it does not
// measure round-trip time and never sets RTTMillis.
type Metrics struct {
	PacketsSent  prometheus.Counter
	PacketsAcked prometheus.Counter
	PacketsLost  prometheus.Counter
	RTTMillis    prometheus.Gauge
}

func newBase(addr net.Addr, timestamp protocol.Timestamp, eventManifest *events.Manifest, heartbeatInterval, timeoutDuration time.Duration, metrics *Metrics) *Connection {
	return &Connection{
		ID:             uuid.New(),
		Address:        addr,
		Timestamp:      timestamp,
		ack:            protocol.NewAckManager(),
		events:         events.NewManager(eventManifest),
		heartbeatTimer: protocol.NewTimer(heartbeatInterval),
		timeoutTimer:   protocol.NewTimer(timeoutDuration),
		metrics:        metrics,
	}
}

// NewServerSide builds a Connection for the server's view of one client,
// with a ServerManager driving entity replication toward that client.
func NewServerSide(addr net.Addr, timestamp protocol.Timestamp, eventManifest *events.Manifest, heartbeatInterval, timeoutDuration time.Duration, metrics *Metrics) *Connection {
	c := newBase(addr, timestamp, eventManifest, heartbeatInterval, timeoutDuration, metrics)
	c.ServerEntities = entities.NewServerManager()
	return c
}

// NewClientSide builds a Connection for the client's view of the server,
// with a ClientManager mirroring whatever entities the server replicates.
func NewClientSide(addr net.Addr, timestamp protocol.Timestamp, eventManifest *events.Manifest, entityManifest *entities.Manifest, heartbeatInterval, timeoutDuration time.Duration, metrics *Metrics) *Connection {
	c := newBase(addr, timestamp, eventManifest, heartbeatInterval, timeoutDuration, metrics)
	c.ClientEntities = entities.NewClientManager(entityManifest)
	return c
}

// SetMaxPayloadBytes overrides the MTU budget GetOutgoingPacket assembles
// against, for deployments that tune Config.MTU away from the wire
// protocol's default of protocol.MaxPayloadBytes. A value <= 0 restores the
// default.
func (c *Connection) SetMaxPayloadBytes(n int) { c.maxPayloadBytes = n }

// NextSequenceNumber exposes the sequence number that will be assigned to
// the next outgoing packet, for diagnostics and metrics.
func (c *Connection) NextSequenceNumber() protocol.SequenceNumber {
	return c.ack.LocalSequenceNumber()
}

// QueueEvent hands e to the outgoing event queue.
func (c *Connection) QueueEvent(e events.Event) {
	c.events.QueueOutgoingEvent(e)
}

// PopIncomingEvent returns the oldest decoded incoming event, if any.
func (c *Connection) PopIncomingEvent() (events.Event, bool) {
	return c.events.PopIncomingEvent()
}

// AddEntity enqueues a Create for key toward this peer. Panics if this
// Connection is not server-side; callers are expected to know which side
// they built.
func (c *Connection) AddEntity(key entities.EntityKey, e entities.Entity) {
	c.ServerEntities.AddEntity(key, e)
}

// RemoveEntity enqueues a Delete for key toward this peer.
func (c *Connection) RemoveEntity(key entities.EntityKey) {
	c.ServerEntities.RemoveEntity(key)
}

// MarkEntityDirty sets field bit dirty for key toward this peer; the target
// of the application's MutHandler fan-out.
func (c *Connection) MarkEntityDirty(key entities.EntityKey, bit int) {
	c.ServerEntities.MarkDirty(key, bit)
}

// PopIncomingEntityMessage returns the oldest queued Create/Update/Delete
// the client side has applied, if any.
func (c *Connection) PopIncomingEntityMessage() (entities.ClientMessage, bool) {
	return c.ClientEntities.PopIncomingMessage()
}

// GetOutgoingPacket assembles a Data packet body from whatever the event
// manager and (server-side) entity manager have pending, framing and
// returning it if anything was written. Returns ok=false if there was
// nothing to send.
func (c *Connection) GetOutgoingPacket() (framed []byte, ok bool) {
	var w *protocol.Writer
	if c.maxPayloadBytes > 0 {
		w = protocol.NewWriterWithBudget(c.maxPayloadBytes)
	} else {
		w = protocol.NewWriter()
	}

	for {
		seq := c.ack.LocalSequenceNumber()
		item, handle, has := c.events.PopOutgoingEvent(seq)
		if !has {
			break
		}
		if !w.WriteEvent(item) {
			c.events.UnpopOutgoingEvent(seq, handle)
			break
		}
	}

	if c.ServerEntities != nil {
		for {
			seq := c.ack.LocalSequenceNumber()
			msg, has := c.ServerEntities.PopOutgoingMessage(seq)
			if !has {
				break
			}
			if !w.WriteEntityMessage(msg.Bytes) {
				c.ServerEntities.UnpopOutgoingMessage(seq, msg)
				break
			}
		}
	}

	if !w.HasBytes() {
		return nil, false
	}

	framed = c.ack.ProcessOutgoing(protocol.PacketData, w.Bytes())
	c.observeSent()
	return framed, true
}

// GetHeartbeatPacket frames a Heartbeat packet. The host should only call
// this when ShouldSendHeartbeat() is true and GetOutgoingPacket returned
// ok=false this tick.
func (c *Connection) GetHeartbeatPacket() []byte {
	framed := c.ack.ProcessOutgoing(protocol.PacketHeartbeat, nil)
	c.observeSent()
	return framed
}

func (c *Connection) observeSent() {
	if c.metrics != nil && c.metrics.PacketsSent != nil {
		c.metrics.PacketsSent.Inc()
	}
}

// MarkSent resets the heartbeat timer, to be called after any packet (data
// or heartbeat) goes out.
func (c *Connection) MarkSent() { c.heartbeatTimer.Reset() }

// MarkHeard resets the timeout timer, to be called whenever anything at all
// is received from this peer.
func (c *Connection) MarkHeard() { c.timeoutTimer.Reset() }

// ShouldSendHeartbeat reports whether the heartbeat interval has elapsed.
func (c *Connection) ShouldSendHeartbeat() bool { return c.heartbeatTimer.Ringing() }

// ShouldDrop reports whether the timeout interval has elapsed without
// hearing from the peer.
func (c *Connection) ShouldDrop() bool { return c.timeoutTimer.Ringing() }

// ProcessIncoming strips the ack header off a received frame, forwards
// delivery/loss notifications to the event and (server-side) entity
// managers, and returns the sender's sequence number plus the remaining
// body for ProcessData.
func (c *Connection) ProcessIncoming(data []byte) (remoteSeq protocol.SequenceNumber, body []byte, err error) {
	remoteSeq, body, acked, lost, err := c.ack.ProcessIncoming(data)
	if err != nil {
		return 0, nil, errors.Wrap(err, "process incoming packet")
	}

	c.MarkHeard()
	c.events.OnDelivered(acked)
	c.events.OnLost(lost)
	if c.ServerEntities != nil {
		c.ServerEntities.OnDelivered(acked)
		c.ServerEntities.OnLost(lost)
	}

	if c.metrics != nil {
		if c.metrics.PacketsAcked != nil && len(acked) > 0 {
			c.metrics.PacketsAcked.Add(float64(len(acked)))
		}
		if c.metrics.PacketsLost != nil && len(lost) > 0 {
			c.metrics.PacketsLost.Add(float64(len(lost)))
		}
	}

	return remoteSeq, body, nil
}

// ProcessData reads the manager-tagged sections of a Data packet body and
// routes each to the appropriate manager. remoteSeq must be the value
// ProcessIncoming returned for this same packet.
func (c *Connection) ProcessData(remoteSeq protocol.SequenceNumber, body []byte) error {
	r := protocol.NewReader(body)
	for {
		kind, has := r.ReadManagerType()
		if !has {
			return nil
		}
		count, err := r.ReadByte()
		if err != nil {
			return errors.Wrap(err, "read section count")
		}

		switch kind {
		case protocol.ManagerEvent:
			if err := c.events.ProcessData(remoteSeq, int(count), r.ByteReader); err != nil {
				return errors.Wrap(err, "process event section")
			}
		case protocol.ManagerEntity:
			if c.ClientEntities != nil {
				if err := c.ClientEntities.ProcessData(r.ByteReader, int(count)); err != nil {
					return errors.Wrap(err, "process entity section")
				}
			} else if err := entities.SkipMessages(r.ByteReader, int(count)); err != nil {
				return errors.Wrap(err, "skip entity section")
			}
		default:
			return errors.Errorf("connection: unknown manager type %d", kind)
		}
	}
}
