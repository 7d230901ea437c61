package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ventosilenzioso/netrelay/source/events"
	"github.com/ventosilenzioso/netrelay/source/protocol"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

type chatEvent struct{ Text string }

func (c chatEvent) NaiaID() events.NaiaID      { return 1 }
func (c chatEvent) Encode(w *protocol.ByteWriter) { w.WriteString(c.Text) }

func decodeChatEvent(r *protocol.ByteReader) (events.Event, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return chatEvent{Text: s}, nil
}

func newTestManifest() *events.Manifest {
	m := events.NewManifest()
	m.Register(1, decodeChatEvent)
	return m
}

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

type fakeSocket struct {
	inbox []transport.Packet
	sent  []sentFrame
}

type sentFrame struct {
	addr net.Addr
	data []byte
}

func (s *fakeSocket) Send(addr net.Addr, b []byte) error {
	s.sent = append(s.sent, sentFrame{addr: addr, data: append([]byte(nil), b...)})
	return nil
}

func (s *fakeSocket) Recv() (transport.Packet, error) {
	if len(s.inbox) == 0 {
		return transport.Packet{}, transport.ErrNoPacket
	}
	p := s.inbox[0]
	s.inbox = s.inbox[1:]
	return p, nil
}

func (s *fakeSocket) LocalAddr() net.Addr { return fakeAddr("server:0") }
func (s *fakeSocket) Close() error        { return nil }

func (s *fakeSocket) push(addr net.Addr, data []byte) {
	s.inbox = append(s.inbox, transport.Packet{Addr: addr, Data: data})
}

func (s *fakeSocket) sentTo(addr net.Addr) []sentFrame {
	var out []sentFrame
	for _, f := range s.sent {
		if f.addr.String() == addr.String() {
			out = append(out, f)
		}
	}
	return out
}

func handshakeClientFrame(ts protocol.Timestamp) []byte {
	w := protocol.NewByteWriter()
	ts.Write(w)
	return protocol.EncodeConnectionless(protocol.PacketHandshakeClient, w.Bytes())
}

const testHeartbeat = 200 * time.Millisecond
const testTimeout = time.Second

func newTestServer() (*Server, *fakeSocket) {
	sock := &fakeSocket{}
	s := New(sock, newTestManifest(), testHeartbeat, testTimeout, nil, nil, nil)
	return s, sock
}

func TestServerAcceptsNewHandshake(t *testing.T) {
	s, sock := newTestServer()
	addr := fakeAddr("client:1")
	ts := protocol.Now()

	sock.push(addr, handshakeClientFrame(ts))
	evs := s.Tick()

	require.Equal(t, 1, s.ConnectionCount())
	require.Len(t, evs, 1)
	require.Equal(t, EventConnection, evs[0].Kind)

	replies := sock.sentTo(addr)
	require.Len(t, replies, 1)
	typ, err := protocol.DecodePacketType(replies[0].data)
	require.NoError(t, err)
	require.Equal(t, protocol.PacketHandshakeServer, typ)
}

func TestServerConnectionIDStableAcrossIdempotentHandshake(t *testing.T) {
	s, sock := newTestServer()
	addr := fakeAddr("client:1")
	ts := protocol.Now()

	sock.push(addr, handshakeClientFrame(ts))
	s.Tick()
	first, ok := s.ConnectionID(addr)
	require.True(t, ok)

	sock.push(addr, handshakeClientFrame(ts))
	s.Tick()
	second, ok := s.ConnectionID(addr)
	require.True(t, ok)
	require.Equal(t, first, second)

	_, ok = s.ConnectionID(fakeAddr("unknown:1"))
	require.False(t, ok)
}

func TestServerIdempotentOnRepeatedHandshake(t *testing.T) {
	s, sock := newTestServer()
	addr := fakeAddr("client:1")
	ts := protocol.Now()

	sock.push(addr, handshakeClientFrame(ts))
	s.Tick()
	require.Equal(t, 1, s.ConnectionCount())

	sock.push(addr, handshakeClientFrame(ts))
	evs := s.Tick()

	require.Equal(t, 1, s.ConnectionCount())
	require.Empty(t, evs)
	require.Len(t, sock.sentTo(addr), 2)
}

func TestServerReplacesConnectionOnTimestampMismatch(t *testing.T) {
	s, sock := newTestServer()
	addr := fakeAddr("client:1")
	ts1 := protocol.Now()

	sock.push(addr, handshakeClientFrame(ts1))
	s.Tick()

	ts2 := ts1 + 1
	sock.push(addr, handshakeClientFrame(ts2))
	evs := s.Tick()

	require.Equal(t, 1, s.ConnectionCount())
	require.Len(t, evs, 2)
	require.Equal(t, EventDisconnection, evs[0].Kind)
	require.Equal(t, EventConnection, evs[1].Kind)
}

func connectTestPeer(t *testing.T) (*Server, *fakeSocket, fakeAddr) {
	t.Helper()
	s, sock := newTestServer()
	addr := fakeAddr("client:1")
	sock.push(addr, handshakeClientFrame(protocol.Now()))
	s.Tick()
	require.Equal(t, 1, s.ConnectionCount())
	return s, sock, addr
}

func TestServerRoutesDataPacketToConnection(t *testing.T) {
	s, sock, addr := connectTestPeer(t)

	item := protocol.NewByteWriter()
	item.WriteUint16(1)
	chatEvent{Text: "hi"}.Encode(item)
	w := protocol.NewWriter()
	require.True(t, w.WriteEvent(item.Bytes()))

	hw := protocol.NewByteWriter()
	protocol.Header{Type: protocol.PacketData, LocalSeq: 0, RemoteAck: 0, AckBitfield: 0}.Encode(hw)
	hw.WriteBytes(w.Bytes())

	sock.push(addr, hw.Bytes())
	evs := s.Tick()

	require.Len(t, evs, 1)
	require.Equal(t, EventData, evs[0].Kind)
	require.Equal(t, chatEvent{Text: "hi"}, evs[0].Data)
}

func TestServerDropsSequencedPacketFromUnknownAddress(t *testing.T) {
	s, sock := newTestServer()
	hw := protocol.NewByteWriter()
	protocol.Header{Type: protocol.PacketData}.Encode(hw)
	sock.push(fakeAddr("stranger:1"), hw.Bytes())

	evs := s.Tick()
	require.Empty(t, evs)
	require.Equal(t, 0, s.ConnectionCount())
}

func TestServerEmitsDisconnectionAfterTimeout(t *testing.T) {
	s, _, addr := connectTestPeer(t)
	time.Sleep(testTimeout + 50*time.Millisecond)

	evs := s.Tick()
	require.Equal(t, 0, s.ConnectionCount())
	require.Len(t, evs, 1)
	require.Equal(t, EventDisconnection, evs[0].Kind)
	require.Equal(t, addr, evs[0].Addr)
}

func TestServerRateLimitsHandshakeProcessing(t *testing.T) {
	sock := &fakeSocket{}
	limiter := rate.NewLimiter(rate.Limit(0), 1)
	s := New(sock, newTestManifest(), testHeartbeat, testTimeout, limiter, nil, nil)
	addr := fakeAddr("client:1")

	sock.push(addr, handshakeClientFrame(protocol.Now()))
	s.Tick()
	require.Equal(t, 1, s.ConnectionCount())

	sock.push(fakeAddr("client:2"), handshakeClientFrame(protocol.Now()))
	evs := s.Tick()
	require.Empty(t, evs)
	require.Equal(t, 1, s.ConnectionCount())
}

func TestServerBroadcastQueuesEventForEveryPeer(t *testing.T) {
	s, sock, addr := connectTestPeer(t)
	before := len(sock.sentTo(addr))

	s.Broadcast(chatEvent{Text: "gg"})
	s.Tick()

	require.Greater(t, len(sock.sentTo(addr)), before)
}
