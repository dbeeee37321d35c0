package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"

	yml "gopkg.in/yaml.v2"

	"gomount/config"
	"gomount/host/logging"
	"gomount/host/monitor"
	"gomount/host/sim"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "mount-sim.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, run on defaults
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `mount-sim runs the telescope mount firmware against simulated hardware.
Hosts connect to the link address exactly as they would to a board's serial
port, and the simulator serves its telemetry over HTTP.

Usage:
	mount-sim <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `mount-sim is configured through its .yml file, mount-sim.yml in the working
directory.  Run "mount-sim mkconf" to write one with the defaults.

Top level keys:
	addr            HTTP address serving /metrics and /status
	link            TCP address hosts connect to for the command link
	telemetry_rate  unsolicited status frames per second, 0 for none
	log             level (debug, info, warn, error) and format (text, json)
	mount           the mount itself: site, rates, limits and both axes

Simulated hardware:
	step/dir drivers drive an in-memory pin bank
	tmc2130 and tmc5160 drivers talk to a simulated register file
	axes with encoder_counts_per_degree get an absolute encoder fixed to the motor

HTTP routes:
	GET /metrics            Prometheus metrics
	GET /status             newest status snapshot as JSON
	GET /status/axis/{axis} motor state of axis 1 or 2`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("mount-sim version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Mount.Validate(); err != nil {
		log.Fatalf("mount config: %v", err)
	}
	logger := logging.New(c.Log)

	collector, err := monitor.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Fatal(err)
	}
	s, err := sim.New(&c.Mount, sim.Options{
		TelemetryRate: c.TelemetryRate,
		OnTelemetry:   collector.Observe,
		Logger:        logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", c.Link)
	if err != nil {
		log.Fatal(err)
	}
	links := make(chan error, 1)
	go func() {
		err := ServeLink(ctx, s, ln, logger)
		if err != nil {
			stop()
		}
		links <- err
	}()

	srv := &http.Server{Addr: c.Addr, Handler: BuildMux(collector)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info(ctx, "now listening",
		logging.String("addr", c.Addr), logging.String("link", c.Link),
		logging.String("mount", c.Mount.MountType))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	if err := <-links; err != nil {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}

// DefaultConfig is the configuration used when no file overrides it
func DefaultConfig() Config {
	return Config{
		Addr:          ":8000",
		Link:          "127.0.0.1:9999",
		TelemetryRate: 4,
		Log:           logging.Config{Level: "info", Format: "text"},
		Mount:         *config.DefaultConfig(),
	}
}
