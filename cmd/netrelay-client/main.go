// Command netrelay-client connects to a netrelay server, completes the
// handshake, and surfaces every chat line and entity update it receives
// while sending a chat line of its own once connected.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ventosilenzioso/netrelay/core/demo"
	"github.com/ventosilenzioso/netrelay/pkg/config"
	"github.com/ventosilenzioso/netrelay/pkg/logger"
	"github.com/ventosilenzioso/netrelay/pkg/metrics"
	"github.com/ventosilenzioso/netrelay/source/client"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "netrelay-client",
		Short: "Connect to a netrelay server",
		RunE:  run,
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("netrelay-client: fatal error")
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logger.New(level)
	logger.Section(log, "netrelay client starting")
	entry := log.WithField("component", "client")

	serverAddr, err := net.ResolveUDPAddr("udp", cfg.ServerAddress)
	if err != nil {
		return errors.Wrapf(err, "resolve server address %q", cfg.ServerAddress)
	}

	socket, err := transport.Listen(":0")
	if err != nil {
		return err
	}
	defer socket.Close()
	entry.WithField("server", serverAddr).Info("connecting")

	registry := metrics.NewRegistry(prometheus.NewRegistry())
	eventManifest := demo.NewEventManifest()
	entityManifest := demo.NewEntityManifest()

	cli := client.New(socket, serverAddr, eventManifest, entityManifest,
		cfg.HeartbeatInterval, cfg.DisconnectionTimeoutDuration,
		registry.ConnectionMetrics(serverAddr), entry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("shutdown requested")
		cancel()
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	said := false

	for {
		select {
		case <-ctx.Done():
			entry.Info("stopped")
			return nil
		case <-ticker.C:
		}

		for _, ev := range cli.Tick() {
			switch ev.Kind {
			case client.EventConnected:
				entry.Info("handshake complete")
				if !said {
					cli.QueueEvent(demo.ChatEvent{Text: "hello from netrelay-client"})
					said = true
				}
			case client.EventDisconnected:
				entry.Warn("server timed out, retrying")
				said = false
			case client.EventData:
				if chat, ok := ev.Data.(demo.ChatEvent); ok {
					entry.WithField("text", chat.Text).Info("chat received")
				}
			}
		}

		for {
			msg, ok := cli.PopIncomingEntityMessage()
			if !ok {
				break
			}
			entry.WithField("key", msg.Key).WithField("action", msg.Action).Debug("entity message")
		}
	}
}
