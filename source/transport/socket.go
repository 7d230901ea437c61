// Package transport is the external collaborator spec.md §1 calls out as
// out of scope for the core: connectionless send/receive of opaque
// datagrams, plus the candidate/address helper a WebRTC-style client needs.
package transport

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// ErrNoPacket is the sentinel Recv returns for the non-blocking "nothing
// arrived" case, standing in for the core's {Packet, None, Error} contract.
var ErrNoPacket = errors.New("transport: no packet available")

// Packet is one received datagram and its sender.
type Packet struct {
	Addr net.Addr
	Data []byte
}

// Socket is the non-blocking datagram transport the core's host loops
// consume. Recv must never block; it returns ErrNoPacket when nothing is
// waiting.
type Socket interface {
	Send(addr net.Addr, b []byte) error
	Recv() (Packet, error)
	LocalAddr() net.Addr
	Close() error
}

// UDPSocket is the production Socket, backed by a real net.UDPConn put into
// non-blocking polling mode via a short read deadline.
type UDPSocket struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket bound to addr (use ":0" for an ephemeral client
// port).
func Listen(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %q", addr)
	}
	return &UDPSocket{conn: conn}, nil
}

// pollDeadline bounds how long Recv will wait for a datagram before
// reporting ErrNoPacket, keeping the host loop's poll effectively
// non-blocking without busy-spinning the CPU.
const pollDeadline = 2 * time.Millisecond

func (s *UDPSocket) Send(addr net.Addr, b []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return errors.Errorf("transport: expected *net.UDPAddr, got %T", addr)
	}
	_, err := s.conn.WriteToUDP(b, udpAddr)
	return errors.Wrap(err, "udp write")
}

func (s *UDPSocket) Recv() (Packet, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return Packet{}, errors.Wrap(err, "set read deadline")
	}
	buf := make([]byte, MaxDatagramSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return Packet{}, ErrNoPacket
		}
		return Packet{}, errors.Wrap(err, "udp read")
	}
	return Packet{Addr: addr, Data: buf[:n]}, nil
}

func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *UDPSocket) Close() error { return s.conn.Close() }

// MaxDatagramSize is comfortably above MaxPayloadBytes + the largest header,
// so a single ReadFromUDP call never truncates a frame.
const MaxDatagramSize = 1500
