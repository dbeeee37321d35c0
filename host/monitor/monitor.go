// Package monitor turns mount telemetry into Prometheus metrics and keeps
// the latest snapshot for status queries.
package monitor

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gomount/astro"
	"gomount/core"
	"gomount/protocol"
)

var flagNames = []struct {
	flag uint8
	name string
}{
	{protocol.FlagTracking, "tracking"},
	{protocol.FlagSlewing, "slewing"},
	{protocol.FlagAtHome, "at_home"},
	{protocol.FlagSafetyLimits, "safety_limits"},
	{protocol.FlagSyncToEncoders, "sync_to_encoders"},
	{protocol.FlagFault, "fault"},
}

// Collector bundles the mount metrics
type Collector struct {
	gatherer prometheus.Gatherer

	RightAscension prometheus.Gauge
	Declination    prometheus.Gauge
	HourAngle      prometheus.Gauge
	Altitude       prometheus.Gauge
	Azimuth        prometheus.Gauge
	SiderealTime   prometheus.Gauge
	PierSide       prometheus.Gauge
	LastError      prometheus.Gauge

	AxisSteps *prometheus.GaugeVec
	AxisRate  *prometheus.GaugeVec
	State     *prometheus.GaugeVec

	Results    *prometheus.CounterVec
	Frames     prometheus.Counter
	LinkErrors prometheus.Counter

	mu       sync.RWMutex
	last     protocol.Telemetry
	lastSeen time.Time
}

// NewCollector registers the mount metrics against reg, defaulting to the
// global registry when nil
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.RightAscension, "mount_right_ascension_hours", "Topocentric right ascension of the mount."},
		{&c.Declination, "mount_declination_degrees", "Topocentric declination of the mount."},
		{&c.HourAngle, "mount_hour_angle_hours", "Hour angle of the mount, negative east of the meridian."},
		{&c.Altitude, "mount_altitude_degrees", "Altitude of the mount above the horizon."},
		{&c.Azimuth, "mount_azimuth_degrees", "Azimuth of the mount, north through east."},
		{&c.SiderealTime, "mount_sidereal_time_hours", "Local apparent sidereal time kept by the mount."},
		{&c.PierSide, "mount_pier_side", "Pier side: 0 none, 1 east, 2 west."},
		{&c.LastError, "mount_last_error", "Result code of the last failed command, 0 when none."},
	}
	for _, g := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	var err error
	c.AxisSteps, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mount_axis_position_steps",
		Help: "Motor position of each axis in steps.",
	}, []string{"axis"}), "mount_axis_position_steps")
	if err != nil {
		return nil, err
	}
	c.AxisRate, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mount_axis_rate_degrees_per_second",
		Help: "Commanded rate of each axis.",
	}, []string{"axis"}), "mount_axis_rate_degrees_per_second")
	if err != nil {
		return nil, err
	}
	c.State, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mount_state",
		Help: "Mount state flags, 1 when set.",
	}, []string{"flag"}), "mount_state")
	if err != nil {
		return nil, err
	}
	c.Results, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mount_command_results_total",
		Help: "Command results reported by the mount, labeled by command and result code.",
	}, []string{"command", "code"}), "mount_command_results_total")
	if err != nil {
		return nil, err
	}
	c.Frames, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mount_telemetry_frames_total",
		Help: "Telemetry snapshots received from the mount.",
	}), "mount_telemetry_frames_total")
	if err != nil {
		return nil, err
	}
	c.LinkErrors, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mount_link_errors_total",
		Help: "Malformed frames and read errors on the mount link.",
	}), "mount_link_errors_total")
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Observe updates the metrics from a telemetry snapshot
func (c *Collector) Observe(t protocol.Telemetry) {
	if c == nil {
		return
	}
	c.RightAscension.Set(astro.RadToHrs(t.RA))
	c.Declination.Set(astro.RadToDeg(t.Dec))
	c.HourAngle.Set(astro.RadToHrs(t.HA))
	c.Altitude.Set(astro.RadToDeg(t.Alt))
	c.Azimuth.Set(astro.RadToDeg(t.Az))
	c.SiderealTime.Set(float64(t.LAST) / 360000)
	c.PierSide.Set(float64(t.PierSide))
	c.LastError.Set(float64(t.LastError))

	c.AxisSteps.WithLabelValues("1").Set(float64(t.Axis1Steps))
	c.AxisSteps.WithLabelValues("2").Set(float64(t.Axis2Steps))
	c.AxisRate.WithLabelValues("1").Set(astro.RadToDeg(t.Axis1Rate))
	c.AxisRate.WithLabelValues("2").Set(astro.RadToDeg(t.Axis2Rate))
	for _, f := range flagNames {
		v := 0.0
		if t.Has(f.flag) {
			v = 1
		}
		c.State.WithLabelValues(f.name).Set(v)
	}
	c.Frames.Inc()

	c.mu.Lock()
	c.last = t
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// RecordResult counts a command result
func (c *Collector) RecordResult(cmdID uint16, code core.CommandError) {
	if c == nil {
		return
	}
	c.Results.WithLabelValues(protocol.CommandName(cmdID), code.String()).Inc()
}

// RecordLinkError counts a link failure
func (c *Collector) RecordLinkError() {
	if c == nil {
		return
	}
	c.LinkErrors.Inc()
}

// Last returns the most recent snapshot and when it arrived
func (c *Collector) Last() (protocol.Telemetry, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.lastSeen, !c.lastSeen.IsZero()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
