package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"

	yml "gopkg.in/yaml.v2"

	"gomount/host/logging"
	"gomount/host/monitor"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "mount-host.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `mount-host talks to a telescope mount over its serial link, or to mount-sim
over TCP.

Usage:
	mount-host <command> [arguments]

Commands:
	status
	goto <ra> <dec>
	sync <ra> <dec>
	abort
	home
	track on|off
	enable on|off
	watch
	monitor
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `mount-host is configured through mount-host.yml in the working directory.
Run "mount-host mkconf" to write one with the defaults.  Set addr to reach a
simulator over TCP; otherwise the serial device is used.

Coordinates are topocentric: right ascension in hours, declination in
degrees, either decimal or sexagesimal (5:35:17.3 -5:23:28).

Commands:
	status          print one status snapshot
	goto            slew to the coordinates and track them
	sync            declare the mount to be pointing at the coordinates
	abort           stop any slew and tracking
	home            declare the mount parked at home
	track on|off    start or stop sidereal tracking
	enable on|off   power the axis drivers
	watch           print the unsolicited status frames until interrupted
	monitor         poll the mount and serve /metrics and /status at listen

Every command prints the result code the mount returned.`
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
	fmt.Printf("mount-host version %v\n", Version)
}

func loadconf() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func command(args []string) {
	c := loadconf()
	m, err := Connect(context.Background(), c)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	if err := Execute(m, c, args, os.Stdout); err != nil {
		m.Close()
		log.Fatal(err)
	}
}

func watch() {
	c := loadconf()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := Connect(ctx, c)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()
	Watch(ctx, m, os.Stdout)
}

func runMonitor() {
	c := loadconf()
	logger := logging.New(c.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := monitor.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", collector.Router())
	srv := &http.Server{Addr: c.Listen, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	logger.Info(ctx, "now listening for requests", logging.String("addr", c.Listen))

	for ctx.Err() == nil {
		m, err := ConnectRetry(ctx, c, func(err error, next time.Duration) {
			collector.RecordLinkError()
			logger.Warn(ctx, "connect failed", logging.Err(err), logging.String("retry_in", next.String()))
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatal(err)
		}
		logger.Info(ctx, "mount connected")
		err = Monitor(ctx, m, c, collector, logger)
		m.Close()
		if err != nil {
			logger.Warn(ctx, "link lost", logging.Err(err))
		}
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
	case "version":
		pversion()
		return
	case "watch":
		watch()
		return
	case "monitor":
		runMonitor()
		return
	case "status", "goto", "sync", "abort", "home", "track", "enable":
		command(append([]string{cmd}, args[2:]...))
		return
	default:
		log.Fatal("unknown command")
	}
}
