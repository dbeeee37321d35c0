package main

import (
	"context"
	"errors"
	"net"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"gomount/config"
	"gomount/host/logging"
	"gomount/host/monitor"
	"gomount/host/sim"
)

// Config is a struct that holds the initialization parameters of the
// simulator.  It is populated by koanf from defaults and mount-sim.yml.
type Config struct {
	// Addr is the HTTP address to listen at
	Addr string `koanf:"addr" yaml:"addr"`

	// Link is the TCP address hosts connect to for the command link
	Link string `koanf:"link" yaml:"link"`

	// TelemetryRate is the number of unsolicited status frames per second
	TelemetryRate float64 `koanf:"telemetry_rate" yaml:"telemetry_rate"`

	Log logging.Config `koanf:"log" yaml:"log"`

	Mount config.MountConfig `koanf:"mount" yaml:"mount"`
}

// BuildMux serves the metrics and the newest status of the simulated mount
func BuildMux(c *monitor.Collector) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)
	root.Mount("/", c.Router())
	return root
}

// ServeLink accepts hosts on ln one at a time and runs the command link
// with each until ctx is done. It closes ln.
func ServeLink(ctx context.Context, s *sim.Simulator, ln net.Listener, logger logging.Logger) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		log := logger.With(logging.String("peer", conn.RemoteAddr().String()))
		log.Info(ctx, "host connected")
		if err := s.Run(ctx, conn); err != nil {
			log.Warn(ctx, "link failed", logging.Err(err))
		}
	}
}
