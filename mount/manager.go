// Package mount assembles a telescope mount from its configuration: the
// sidereal clock and observatory, the two axes with their drivers, the
// coordinate transform and the telescope, plus the command link.
package mount

import (
	"errors"
	"fmt"
	"time"

	"gomount/astro"
	"gomount/axis"
	"gomount/config"
	"gomount/core"
	"gomount/driver"
	"gomount/encoder"
	"gomount/protocol"
	"gomount/sidereal"
	"gomount/telescope"
)

var (
	ErrInitialized    = errors.New("already initialized")
	ErrNotInitialized = errors.New("manager not initialized")
)

// Manager coordinates all mount components
type Manager struct {
	config *config.MountConfig

	clock       *sidereal.Clock
	clockTimer  core.PeriodicTimer
	observatory *sidereal.Observatory
	transform   *astro.Transform
	telescope   *telescope.Telescope

	axes     [2]*axis.Axis
	drivers  [2]driver.Driver
	encoders [2]*encoder.Checked
	timers   []core.PeriodicTimer

	transport *protocol.Transport

	lastPoll    uint32
	initialized bool
	running     bool
}

// NewManager creates a mount manager from a JSON configuration
func NewManager(configData []byte) (*Manager, error) {
	cfg, err := config.LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *config.MountConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{config: cfg}, nil
}

// Initialize builds every component on the given hardware. The axes are
// left disabled and the telescope parked at home.
func (m *Manager) Initialize(hw Hardware) error {
	if m.initialized {
		return ErrInitialized
	}
	if hw.GPIO != nil {
		core.SetGPIODriver(hw.GPIO)
	}

	mountType, err := config.ParseMountType(m.config.MountType)
	if err != nil {
		return err
	}

	m.clock = sidereal.NewClock()
	m.clockTimer = hw.newTimer(m.clock.Tick)
	m.timers = append(m.timers, m.clockTimer)
	m.observatory = sidereal.NewObservatory(m.clock)

	now := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if hw.Now != nil {
		now = hw.Now()
	}
	site := astro.NewSite(astro.DegToRad(m.config.Latitude), astro.DegToRad(m.config.Longitude))
	if e := m.observatory.Init(site, m.localDateTime(now)); e != core.CeNone {
		return e.Err()
	}

	m.transform = astro.NewTransform(mountType, m.observatory)
	m.transform.Refraction.Enabled = m.config.Refraction
	m.transform.Refraction.Pressure = m.config.Pressure
	m.transform.Refraction.Temperature = m.config.Temperature

	for i, ac := range []*config.AxisConfig{&m.config.Axis1, &m.config.Axis2} {
		a, err := m.buildAxis(uint8(i), ac, &hw)
		if err != nil {
			return fmt.Errorf("axis%d: %w", i+1, err)
		}
		m.axes[i] = a
	}

	m.telescope = telescope.New(m.axes[0], m.axes[1], m.transform, m.limits(), m.options())

	core.DebugPrintln("[MOUNT] " + mountType.String() + " initialized")
	m.initialized = true
	return nil
}

func (m *Manager) limits() telescope.Limits {
	return telescope.Limits{
		Horizon:       astro.DegToRad(m.config.Horizon),
		Overhead:      astro.DegToRad(m.config.Overhead),
		PastMeridianE: astro.DegToRad(m.config.PastMeridianE),
		PastMeridianW: astro.DegToRad(m.config.PastMeridianW),
	}
}

func (m *Manager) options() telescope.Options {
	opts := telescope.DefaultOptions()
	if m.config.MeridianFlip == "never" {
		opts.MeridianFlip = telescope.FlipNever
	}
	opts.AllowSyncPierSideChange = m.config.AllowSyncPierSideChange
	opts.Axis2Continuous = m.config.Axis2Continuous
	opts.SlewRate = astro.DegToRad(m.config.SlewRate)
	opts.Acceleration = astro.DegToRad(m.config.Acceleration)
	return opts
}

// localDateTime converts a wall-clock instant to the configured zone.
// UT = local + Timezone.
func (m *Manager) localDateTime(t time.Time) sidereal.DateTime {
	tz := m.config.Timezone
	local := t.UTC().Add(-time.Duration(tz * float64(time.Hour)))
	return sidereal.DateTime{
		Year:        local.Year(),
		Month:       int(local.Month()),
		Day:         local.Day(),
		Hour:        local.Hour(),
		Minute:      local.Minute(),
		Second:      local.Second(),
		Centisecond: local.Nanosecond() / 10000000,
		Timezone:    tz,
	}
}

// SetDateTime reseeds the observatory from a wall-clock instant
func (m *Manager) SetDateTime(t time.Time) core.CommandError {
	if !m.initialized {
		return core.CeNotReady
	}
	return m.observatory.Init(m.observatory.Site(), m.localDateTime(t))
}

// Start runs the sidereal clock
func (m *Manager) Start() error {
	if !m.initialized {
		return ErrNotInitialized
	}

	m.clock.Start(m.clockTimer)
	m.lastPoll = core.GetTime()
	m.running = true
	core.DebugPrintln("[MOUNT] started")
	return nil
}

// Stop halts the axes and every periodic timer
func (m *Manager) Stop() {
	m.running = false
	if m.telescope != nil {
		m.telescope.Abort()
		m.telescope.SetTracking(false)
		m.telescope.Enable(false)
	}
	for _, t := range m.timers {
		if s, ok := t.(interface{ Stop() }); ok {
			s.Stop()
		} else {
			t.SetPeriod(0)
		}
	}
}

// IsRunning returns whether the manager is running
func (m *Manager) IsRunning() bool {
	return m.running
}

// Poll runs the telescope housekeeping. Call it from the main loop.
func (m *Manager) Poll() {
	if !m.running {
		return
	}
	now := core.GetTime()
	dt := float64(core.TimerToUS(now-m.lastPoll)) / 1e6
	m.lastPoll = now
	m.telescope.Poll(dt)
}

// Telescope returns the mount controller
func (m *Manager) Telescope() *telescope.Telescope {
	return m.telescope
}

// Observatory returns the date, time and site owner
func (m *Manager) Observatory() *sidereal.Observatory {
	return m.observatory
}

// Config returns the configuration the mount was built from
func (m *Manager) Config() *config.MountConfig {
	return m.config
}

// Driver returns the driver chip of axis index (0 or 1)
func (m *Manager) Driver(index int) driver.Driver {
	return m.drivers[index]
}

// EncoderStats returns the diagnostics of the axis encoder, if fitted
func (m *Manager) EncoderStats(index int) (encoder.Stats, bool) {
	if m.encoders[index] == nil {
		return encoder.Stats{}, false
	}
	return m.encoders[index].Stats(), true
}
