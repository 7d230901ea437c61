// Package metrics wires Prometheus client_golang instruments for the
// packets-sent/acked/lost counters and RTT gauge a connection.Connection
// reports through, plus a connected-peer gauge for the server.
package metrics

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ventosilenzioso/netrelay/source/connection"
)

// Registry owns every Prometheus instrument this module registers, labeled
// per-peer so a multi-connection server's dashboards can break down by
// address.
type Registry struct {
	packetsSent    *prometheus.CounterVec
	packetsAcked   *prometheus.CounterVec
	packetsLost    *prometheus.CounterVec
	rttMillis      *prometheus.GaugeVec
	connectedPeers prometheus.Gauge
}

// NewRegistry constructs and registers every instrument against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netrelay",
			Name:      "packets_sent_total",
			Help:      "Packets sent on a connection, by peer address.",
		}, []string{"peer"}),
		packetsAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netrelay",
			Name:      "packets_acked_total",
			Help:      "Packets acknowledged by the peer, by peer address.",
		}, []string{"peer"}),
		packetsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netrelay",
			Name:      "packets_lost_total",
			Help:      "Packets declared lost (fell out of the ack window unacked), by peer address.",
		}, []string{"peer"}),
		rttMillis: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netrelay",
			Name:      "rtt_milliseconds",
			Help:      "Most recent observed round-trip time, by peer address. Observable only: never feeds back into retransmit timing.",
		}, []string{"peer"}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netrelay",
			Name:      "connected_peers",
			Help:      "Number of peers currently connected.",
		}),
	}
	reg.MustRegister(r.packetsSent, r.packetsAcked, r.packetsLost, r.rttMillis, r.connectedPeers)
	return r
}

// ConnectionMetrics returns a connection.Metrics bound to peer's labeled
// instruments, suitable for server.MetricsFactory or direct use by a
// client's single Connection.
func (r *Registry) ConnectionMetrics(peer net.Addr) *connection.Metrics {
	label := peer.String()
	return &connection.Metrics{
		PacketsSent:  r.packetsSent.WithLabelValues(label),
		PacketsAcked: r.packetsAcked.WithLabelValues(label),
		PacketsLost:  r.packetsLost.WithLabelValues(label),
		RTTMillis:    r.rttMillis.WithLabelValues(label),
	}
}

// SetConnectedPeers reports the current connected-peer count.
func (r *Registry) SetConnectedPeers(n int) {
	r.connectedPeers.Set(float64(n))
}
