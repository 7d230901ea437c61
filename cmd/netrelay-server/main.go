// Command netrelay-server runs the server half of the connection runtime:
// one listening socket, a table of connected peers, and the orbiting-entity
// demo gamemode exercising events and entity replication end to end.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ventosilenzioso/netrelay/core/demo"
	"github.com/ventosilenzioso/netrelay/pkg/config"
	"github.com/ventosilenzioso/netrelay/pkg/logger"
	"github.com/ventosilenzioso/netrelay/pkg/metrics"
	"github.com/ventosilenzioso/netrelay/source/server"
	"github.com/ventosilenzioso/netrelay/source/transport"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "netrelay-server",
		Short: "Run the netrelay server host loop",
		RunE:  run,
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("netrelay-server: fatal error")
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
	logger.Section(log, "netrelay server starting")
	entry := log.WithField("component", "server")

	socket, err := transport.Listen(cfg.ListenAddress)
	if err != nil {
		return err
	}
	defer socket.Close()
	entry.WithField("addr", socket.LocalAddr()).Info("listening")

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)

	var limiter *rate.Limiter
	if cfg.HandshakeRateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HandshakeRateLimitPerSecond), cfg.HandshakeRateLimitBurst)
	}

	eventManifest := demo.NewEventManifest()
	srv := server.New(socket, eventManifest, cfg.HeartbeatInterval, cfg.DisconnectionTimeoutDuration,
		limiter, metricsRegistry.ConnectionMetrics, entry)
	moving := demo.NewMovingSystem(srv)

	if cfg.MetricsListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsListenAddress, mux); err != nil {
				entry.WithError(err).Warn("metrics endpoint stopped")
			}
		}()
		entry.WithField("addr", cfg.MetricsListenAddress).Info("serving metrics")
	}

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

	for {
		select {
		case <-ctx.Done():
			entry.Info("stopped")
			return nil
		case <-ticker.C:
		}

		for _, ev := range srv.Tick() {
			switch ev.Kind {
			case server.EventConnection:
				connID, _ := srv.ConnectionID(ev.Addr)
				entry.WithFields(logrus.Fields{"addr": ev.Addr, "conn": connID}).Info("peer connected")
				moving.Spawn(ev.Addr, 10, 0.05)
				metricsRegistry.SetConnectedPeers(srv.ConnectionCount())
			case server.EventDisconnection:
				entry.WithField("addr", ev.Addr).Info("peer disconnected")
				metricsRegistry.SetConnectedPeers(srv.ConnectionCount())
			case server.EventData:
				entry.WithFields(logrus.Fields{"addr": ev.Addr, "event": ev.Data}).Debug("received event")
			}
		}
		moving.Tick()
	}
}
