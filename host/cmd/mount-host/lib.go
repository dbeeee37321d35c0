package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"gomount/astro"
	"gomount/core"
	"gomount/host/client"
	"gomount/host/logging"
	"gomount/host/monitor"
	"gomount/host/serial"
	"gomount/protocol"
)

// Config holds the connection and monitor settings of mount-host
type Config struct {
	// Addr is the TCP address of a simulator.  When set it is used
	// instead of the serial port.
	Addr string `koanf:"addr" yaml:"addr"`

	Serial serial.Config `koanf:"serial" yaml:"serial"`

	// Listen is the HTTP address of the monitor command
	Listen string `koanf:"listen" yaml:"listen"`

	// PollMillis is the status query period of the monitor command
	PollMillis int `koanf:"poll_ms" yaml:"poll_ms"`

	// TimeoutMillis bounds a status query
	TimeoutMillis int `koanf:"timeout_ms" yaml:"timeout_ms"`

	// ReconnectMillis bounds the reconnection attempts of the monitor
	// command, 0 retries forever
	ReconnectMillis int `koanf:"reconnect_ms" yaml:"reconnect_ms"`

	Log logging.Config `koanf:"log" yaml:"log"`
}

// DefaultConfig is the configuration used when no file overrides it
func DefaultConfig() Config {
	return Config{
		Serial:        *serial.DefaultConfig("/dev/ttyACM0"),
		Listen:        ":8001",
		PollMillis:    1000,
		TimeoutMillis: 2000,
		Log:           logging.Config{Level: "info", Format: "text"},
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// Connect opens the link named by the config
func Connect(ctx context.Context, c Config) (*client.Mount, error) {
	m := client.New()
	if c.Addr != "" {
		ctx, cancel := context.WithTimeout(ctx, c.timeout())
		defer cancel()
		return m, m.Dial(ctx, c.Addr)
	}
	serialCfg := c.Serial
	return m, m.ConnectWithConfig(&serialCfg)
}

// ConnectRetry keeps connecting with exponential backoff, reporting each
// failure to notify
func ConnectRetry(ctx context.Context, c Config, notify backoff.Notify) (*client.Mount, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      time.Duration(c.ReconnectMillis) * time.Millisecond,
		Clock:               backoff.SystemClock}

	var m *client.Mount
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		mount, err := Connect(ctx, c)
		if err != nil {
			return err
		}
		m = mount
		return nil
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseTarget reads a right ascension in hours and a declination in degrees.
// Either may be sexagesimal, e.g. 5:35:17.3 and -5:23:28.
func ParseTarget(raArg, decArg string) (ra, dec float64, err error) {
	h, err := parseSexagesimal(raArg)
	if err != nil {
		return 0, 0, fmt.Errorf("right ascension: %w", err)
	}
	if h < 0 || h >= 24 {
		return 0, 0, fmt.Errorf("right ascension %v outside 0..24h", h)
	}
	d, err := parseSexagesimal(decArg)
	if err != nil {
		return 0, 0, fmt.Errorf("declination: %w", err)
	}
	if d < -90 || d > 90 {
		return 0, 0, fmt.Errorf("declination %v outside -90..90", d)
	}
	return astro.HrsToRad(h), astro.DegToRad(d), nil
}

func parseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid angle %q", s)
	}
	v := 0.
	scale := 1.
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 || (i > 0 && f >= 60) {
			return 0, fmt.Errorf("invalid angle %q", s)
		}
		v += f / scale
		scale *= 60
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ParseOnOff reads the argument of track and enable
func ParseOnOff(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", arg)
}

var errUsage = errors.New("wrong number of arguments")

// Execute runs one mount command line against m and reports the outcome
// on w
func Execute(m *client.Mount, c Config, args []string, w io.Writer) error {
	var (
		code core.CommandError
		err  error
	)
	switch args[0] {
	case "status":
		tel, err := m.Query(c.timeout())
		if err != nil {
			return err
		}
		PrintStatus(w, monitor.NewStatus(tel, time.Now()))
		return nil

	case "goto", "sync":
		if len(args) != 3 {
			return errUsage
		}
		ra, dec, err := ParseTarget(args[1], args[2])
		if err != nil {
			return err
		}
		if args[0] == "goto" {
			code, err = m.Goto(ra, dec)
		} else {
			code, err = m.Sync(ra, dec)
		}
		if err != nil {
			return err
		}

	case "abort":
		code, err = m.Abort()

	case "home":
		code, err = m.Home()

	case "track", "enable":
		if len(args) != 2 {
			return errUsage
		}
		on, err := ParseOnOff(args[1])
		if err != nil {
			return err
		}
		if args[0] == "track" {
			code, err = m.SetTracking(on)
		} else {
			code, err = m.Enable(on)
		}
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown mount command %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", args[0], code)
	if code != core.CeNone {
		return code.Err()
	}
	return nil
}

// PrintStatus writes a snapshot for the console
func PrintStatus(w io.Writer, st monitor.Status) {
	state := []string{}
	for _, f := range []struct {
		on   bool
		name string
	}{
		{st.Tracking, "tracking"},
		{st.Slewing, "slewing"},
		{st.AtHome, "at home"},
		{st.SafetyLimits, "limits on"},
		{st.SyncToEncoders, "encoders pending"},
		{st.Fault, "FAULT"},
	} {
		if f.on {
			state = append(state, f.name)
		}
	}
	if len(state) == 0 {
		state = append(state, "idle")
	}

	fmt.Fprintf(w, "RA  %s   Dec %s   pier %s\n", hms(st.RightAscension), dms(st.Declination), st.PierSide)
	fmt.Fprintf(w, "HA  %s   Alt %7.3f  Az %7.3f\n", hms(st.HourAngle), st.Altitude, st.Azimuth)
	fmt.Fprintf(w, "LAST %s   %s   last error: %s\n", hms(st.SiderealTime), strings.Join(state, ", "), st.LastError)
	for i, ax := range st.Axes {
		fmt.Fprintf(w, "axis%d %12d steps %10.5f deg/s\n", i+1, ax.Steps, ax.Rate)
	}
}

func hms(hours float64) string {
	sign := " "
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	cs := int64(hours*360000 + 0.5)
	return fmt.Sprintf("%s%02d:%02d:%05.2f", sign, cs/360000, cs/6000%60, float64(cs%6000)/100)
}

func dms(deg float64) string {
	sign := "+"
	if deg < 0 {
		sign = "-"
		deg = -deg
	}
	ds := int64(deg*36000 + 0.5)
	return fmt.Sprintf("%s%02d:%02d:%04.1f", sign, ds/36000, ds/600%60, float64(ds%600)/10)
}

// Watch prints every snapshot until ctx is done
func Watch(ctx context.Context, m *client.Mount, w io.Writer) {
	snapshots := make(chan protocol.Telemetry, 1)
	m.OnTelemetry(func(t protocol.Telemetry) {
		select {
		case snapshots <- t:
		default:
		}
	})
	defer m.OnTelemetry(nil)

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-snapshots:
			PrintStatus(w, monitor.NewStatus(t, time.Now()))
			fmt.Fprintln(w)
		}
	}
}

// Monitor polls the mount into collector until ctx is done
func Monitor(ctx context.Context, m *client.Mount, c Config, collector *monitor.Collector, logger logging.Logger) error {
	m.OnTelemetry(collector.Observe)
	m.OnResult(collector.RecordResult)
	m.OnError(func(err error) {
		collector.RecordLinkError()
		logger.Warn(ctx, "bad message", logging.Err(err))
	})

	period := time.Duration(c.PollMillis) * time.Millisecond
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := m.Query(c.timeout()); err != nil {
			collector.RecordLinkError()
			failures++
			logger.Warn(ctx, "status query failed", logging.Err(err), logging.Int("failures", failures))
			if errors.Is(err, protocol.ErrTransportClosed) || failures >= 5 {
				return err
			}
			continue
		}
		failures = 0
	}
}
