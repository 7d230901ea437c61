package transport

import (
	"math/rand"
	"net"
)

// SimulatedLoss wraps a Socket and drops a fraction of outgoing sends,
// standing in for original_source's drop_counter/drop_max lossy-link test
// harness. It is explicitly opt-in and test-only: production code always
// talks to a bare UDPSocket directly.
type SimulatedLoss struct {
	inner Socket
	rng   *rand.Rand
	rate  float64
}

// NewSimulatedLoss wraps inner, dropping outgoing sends with probability
// rate (0 = nothing dropped, 1 = everything dropped). seed makes drop
// decisions reproducible across test runs.
func NewSimulatedLoss(inner Socket, rate float64, seed int64) *SimulatedLoss {
	return &SimulatedLoss{inner: inner, rng: rand.New(rand.NewSource(seed)), rate: rate}
}

// Send silently drops the datagram instead of forwarding it with
// probability rate, decided independently for each call.
func (s *SimulatedLoss) Send(addr net.Addr, b []byte) error {
	if s.rng.Float64() < s.rate {
		return nil
	}
	return s.inner.Send(addr, b)
}

func (s *SimulatedLoss) Recv() (Packet, error) { return s.inner.Recv() }

func (s *SimulatedLoss) LocalAddr() net.Addr { return s.inner.LocalAddr() }

func (s *SimulatedLoss) Close() error { return s.inner.Close() }
