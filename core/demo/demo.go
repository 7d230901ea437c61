// Package demo's Run wires one client and one server together over real
// loopback UDP sockets and drives them for a bounded span, enough to watch
// a handshake complete, a chat line cross in both directions, and a handful
// of entity updates replicate. It exists to exercise the whole stack the
// way core/main.go once booted a gamemode, without any SA-MP-specific
// surface left to carry.
package demo

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ventosilenzioso/netrelay/pkg/metrics"
	"github.com/ventosilenzioso/netrelay/source/client"
	"github.com/ventosilenzioso/netrelay/source/server"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

// Config tunes how long and how fast the demo runs.
type Config struct {
	HeartbeatInterval time.Duration
	TimeoutDuration   time.Duration
	TickInterval      time.Duration
	Duration          time.Duration
}

// DefaultConfig mirrors pkg/config.Defaults' timing, scaled down so the
// demo completes quickly.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 200 * time.Millisecond,
		TimeoutDuration:   2 * time.Second,
		TickInterval:      10 * time.Millisecond,
		Duration:          3 * time.Second,
	}
}

// Summary reports what the run observed, for a caller (cmd or test) to
// assert against.
type Summary struct {
	ClientConnected    bool
	ChatMessagesServer int
	ChatMessagesClient int
	EntityUpdates      int
}

// Run starts a server and a client on loopback, spawns one orbiting
// MovingEntity toward the client once it connects, exchanges one chat line
// each way, and ticks both sides until ctx is done or cfg.Duration elapses.
func Run(ctx context.Context, cfg Config, log *logrus.Entry) (Summary, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	serverSocket, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		return Summary{}, errors.Wrap(err, "demo: listen server socket")
	}
	defer serverSocket.Close()

	clientSocket, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		return Summary{}, errors.Wrap(err, "demo: listen client socket")
	}
	defer clientSocket.Close()

	reg := metrics.NewRegistry(prometheus.NewRegistry())
	eventManifest := NewEventManifest()
	entityManifest := NewEntityManifest()

	srv := server.New(serverSocket, eventManifest, cfg.HeartbeatInterval, cfg.TimeoutDuration,
		nil, reg.ConnectionMetrics, log.WithField("role", "server"))

	moving := NewMovingSystem(srv)

	cli := client.New(clientSocket, serverSocket.LocalAddr(), eventManifest, entityManifest,
		cfg.HeartbeatInterval, cfg.TimeoutDuration, reg.ConnectionMetrics(serverSocket.LocalAddr()),
		log.WithField("role", "client"))

	var summary Summary
	var clientAddr net.Addr
	var spawned bool

	deadline := time.Now().Add(cfg.Duration)
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case <-ticker.C:
		}

		for _, ev := range srv.Tick() {
			switch ev.Kind {
			case server.EventConnection:
				clientAddr = ev.Addr
				srv.QueueEvent(clientAddr, ChatEvent{Text: "welcome"})
				log.WithField("addr", clientAddr).Info("demo: peer connected")
			case server.EventDisconnection:
				log.WithField("addr", ev.Addr).Info("demo: peer disconnected")
			case server.EventData:
				if _, ok := ev.Data.(ChatEvent); ok {
					summary.ChatMessagesServer++
				}
			}
		}

		if clientAddr != nil && !spawned {
			moving.Spawn(clientAddr, 10, 0.05)
			spawned = true
		}
		if spawned {
			moving.Tick()
		}

		for _, ev := range cli.Tick() {
			switch ev.Kind {
			case client.EventConnected:
				summary.ClientConnected = true
				cli.QueueEvent(ChatEvent{Text: "hello"})
			case client.EventData:
				if _, ok := ev.Data.(ChatEvent); ok {
					summary.ChatMessagesClient++
				}
			}
		}

		for {
			_, ok := cli.PopIncomingEntityMessage()
			if !ok {
				break
			}
			summary.EntityUpdates++
		}
	}

	return summary, nil
}
