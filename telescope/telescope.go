// Package telescope orchestrates goto and sync requests: it validates axis
// and hardware state, checks targets against the limits, decides the pier
// side and drives the two axes through the coordinate transform.
package telescope

import (
	"math"
	"sync"

	"gomount/astro"
	"gomount/axis"
	"gomount/core"
)

// Options are the configuration-time policies of the mount
type Options struct {
	MeridianFlip MeridianFlip

	// AllowSyncPierSideChange lets a sync move the tube to the other side
	AllowSyncPierSideChange bool

	// Axis2Continuous skips the declination range check
	Axis2Continuous bool

	// Goto speed profile, radians per second (squared)
	SlewRate     float64
	MinSlewRate  float64
	Acceleration float64

	// Home is the instrument position of both axes when parked at home
	HomeAxis1 float64
	HomeAxis2 float64
}

// DefaultOptions flips at the meridian and slews at 2°/s
func DefaultOptions() Options {
	return Options{
		MeridianFlip: FlipAlways,
		SlewRate:     astro.DegToRad(2),
		MinSlewRate:  astro.SiderealRate * 4,
		Acceleration: astro.DegToRad(1),
		HomeAxis2:    astro.Deg90,
	}
}

// maxGotoPasses bounds the refinement slews that catch up with sky motion
const maxGotoPasses = 3

// Status is a snapshot of the mount-wide state
type Status struct {
	Tracking           bool
	Slewing            bool
	AtHome             bool
	SafetyLimitsOn     bool
	SyncToEncodersOnly bool
	Fault              bool
	PierSide           astro.PierSide
	LastError          core.CommandError
}

// Telescope is the mount. Every exported method holds mu for its whole
// duration; the axis callbacks never take it.
type Telescope struct {
	mu sync.Mutex

	axis1     *axis.Axis
	axis2     *axis.Axis
	transform *astro.Transform
	limits    Limits
	opts      Options

	position           astro.Coordinate // mount frame
	target             astro.Coordinate // topocentric
	tracking           bool
	slewing            bool
	gotoPasses         int
	atHome             bool
	safetyLimitsOn     bool
	syncToEncodersOnly bool
	lastError          core.CommandError

	encoderOffset1 float64
	encoderOffset2 float64
}

// New creates a telescope parked at home
func New(axis1, axis2 *axis.Axis, transform *astro.Transform, limits Limits, opts Options) *Telescope {
	t := &Telescope{
		axis1:     axis1,
		axis2:     axis2,
		transform: transform,
		limits:    limits,
		opts:      opts,
	}
	t.setAtHome()
	return t
}

// updatePosition recomputes the mount-frame position from the axes
func (t *Telescope) updatePosition() {
	t.position = t.transform.InstrumentToMount(t.axis1.InstrumentCoordinate(), t.axis2.InstrumentCoordinate())
}

func (t *Telescope) enableAxes(on bool) error {
	if err := t.axis1.Enable(on); err != nil {
		return err
	}
	return t.axis2.Enable(on)
}

// Enable powers both axes
func (t *Telescope) Enable(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !on {
		t.tracking = false
		t.slewing = false
	}
	return t.enableAxes(on)
}

// SyncEqu declares the mount to be pointing at the topocentric target
// without moving it.
func (t *Telescope) SyncEqu(target astro.Coordinate) core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.validateGoto()
	if e == core.CeSlewErrInStandby && t.atHome {
		// the one automatic recovery: power up from home and retry
		if err := t.enableAxes(true); err == nil {
			e = t.validateGoto()
		}
	}
	if e != core.CeNone {
		return t.fail(e)
	}
	if t.slewing {
		return t.fail(core.CeSlewInProgress)
	}

	c := target
	t.transform.TopocentricToMount(&c)
	if e := t.validateGotoCoords(&c); e != core.CeNone {
		return t.fail(e)
	}

	t.updatePosition()
	side, e := t.pierSide(c.H, t.opts.AllowSyncPierSideChange)
	if e != core.CeNone {
		return t.fail(e)
	}
	c.PierSide = side

	a1, a2 := t.transform.MountToInstrument(c)
	t.axis1.SetInstrumentCoordinate(a1)
	t.axis2.SetInstrumentCoordinate(a2)
	if t.tracking {
		t.startTracking()
	}

	t.atHome = false
	t.safetyLimitsOn = true
	t.syncToEncodersOnly = true
	t.target = target
	t.target.PierSide = side
	t.lastError = core.CeNone

	core.RecordTiming(core.EvtSync, 0, uint32(side), 0)
	core.DebugPrintln("[TEL] sync h=" + core.Ftoa(c.H, 5) + " d=" + core.Ftoa(c.D, 5) + " " + side.String())
	return core.CeNone
}

// GotoEqu starts a slew to the topocentric target. Tracking resumes when
// both axes arrive.
func (t *Telescope) GotoEqu(target astro.Coordinate) core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e := t.validateGoto(); e != core.CeNone {
		return t.fail(e)
	}
	if t.slewing {
		return t.fail(core.CeSlewInProgress)
	}

	c := target
	t.transform.TopocentricToMount(&c)
	if e := t.validateGotoCoords(&c); e != core.CeNone {
		return t.fail(e)
	}

	t.updatePosition()
	side, e := t.pierSide(c.H, true)
	if e != core.CeNone {
		return t.fail(e)
	}
	if side != t.position.PierSide && t.position.PierSide != astro.PierSideNone {
		core.RecordTiming(core.EvtPierFlip, 0, uint32(t.position.PierSide), uint32(side))
	}

	t.target = target
	t.target.PierSide = side
	t.atHome = false
	t.gotoPasses = 0
	t.lastError = core.CeNone
	t.startSlew()

	core.RecordTiming(core.EvtGoto, 0, uint32(side), 0)
	core.DebugPrintln("[TEL] goto h=" + core.Ftoa(c.H, 5) + " d=" + core.Ftoa(c.D, 5) + " " + side.String())
	return core.CeNone
}

// instrumentTarget converts the stored target for the current sky
func (t *Telescope) instrumentTarget() (float64, float64) {
	c := t.target
	t.transform.TopocentricToMount(&c)
	c.PierSide = t.target.PierSide
	return t.transform.MountToInstrument(c)
}

func (t *Telescope) startSlew() {
	a1, a2 := t.instrumentTarget()
	for i, ax := range []*axis.Axis{t.axis1, t.axis2} {
		ax.SetTracking(false)
		if i == 0 {
			ax.SetTargetCoordinate(a1)
		} else {
			ax.SetTargetCoordinate(a2)
		}
		ax.AutoSlewRateByDistance(t.opts.SlewRate, t.opts.MinSlewRate, t.opts.Acceleration)
	}
	t.slewing = true
	t.gotoPasses++
}

// Abort stops any slew and tracking where the mount is
func (t *Telescope) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.axis1.AbortSlew()
	t.axis2.AbortSlew()
	t.slewing = false
	t.tracking = false
	core.RecordTiming(core.EvtAbort, 0, 0, 0)
}

// Poll runs the goto profiles and safety checks. dt is the time since the
// previous poll in seconds.
func (t *Telescope) Poll(dt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slewing {
		arrived1 := t.axis1.Poll(dt)
		arrived2 := t.axis2.Poll(dt)
		if arrived1 && arrived2 {
			t.finishSlew()
		}
		return
	}

	if !t.tracking {
		return
	}
	if !t.transform.MountType.IsEquatorial() {
		t.followAltAz()
	}
	if t.safetyLimitsOn {
		t.checkTrackingLimits()
	}
}

func (t *Telescope) finishSlew() {
	a1, a2 := t.instrumentTarget()
	off1 := math.Abs(a1-t.axis1.InstrumentCoordinate()) * t.axis1.StepsPerMeasure()
	off2 := math.Abs(a2-t.axis2.InstrumentCoordinate()) * t.axis2.StepsPerMeasure()
	if (off1 > 1 || off2 > 1) && t.gotoPasses < maxGotoPasses {
		// the sky moved during the slew
		t.startSlew()
		return
	}

	t.slewing = false
	t.safetyLimitsOn = true
	t.startTracking()
	core.RecordTiming(core.EvtGotoDone, 0, uint32(t.gotoPasses), 0)
}

// SetTracking starts or stops following the sky
func (t *Telescope) SetTracking(on bool) core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !on {
		t.tracking = false
		t.stopTracking()
		return core.CeNone
	}
	if e := t.validateGoto(); e != core.CeNone {
		return t.fail(e)
	}
	if t.atHome {
		return t.fail(core.CeNotReady)
	}
	t.startTracking()
	return core.CeNone
}

func (t *Telescope) startTracking() {
	t.tracking = true
	if t.slewing {
		return
	}
	if t.transform.MountType.IsEquatorial() {
		t.axis1.SetTrackingStep(1)
		t.axis1.SetFrequency(astro.SiderealRate)
		t.axis1.SetTracking(true)
		return
	}
	t.followAltAz()
}

func (t *Telescope) stopTracking() {
	if t.slewing {
		return
	}
	t.axis1.Stop()
	t.axis2.Stop()
}

// followAltAz moves both axes toward where the target is now. Each axis
// runs at twice the sidereal rate so it keeps up away from the zenith.
func (t *Telescope) followAltAz() {
	a1, a2 := t.instrumentTarget()
	t.axis1.SetTargetCoordinate(a1)
	t.axis2.SetTargetCoordinate(a2)
	t.axis1.SetFrequency(2 * astro.SiderealRate)
	t.axis2.SetFrequency(2 * astro.SiderealRate)
}

// checkTrackingLimits stops tracking that carries the tube past the
// meridian or below the horizon.
func (t *Telescope) checkTrackingLimits() {
	t.updatePosition()
	p := t.position
	past := p.PierSide == astro.PierSideEast && t.opts.MeridianFlip == FlipAlways &&
		p.H > t.limits.PastMeridianE
	if past || p.A < t.limits.Horizon {
		t.tracking = false
		t.stopTracking()
		t.lastError = core.CeSlewErrOutsideLimits
		core.DebugPrintln("[TEL] tracking stopped at limit")
	}
}

// SetAtHome declares the mount parked at its home position
func (t *Telescope) SetAtHome() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAtHome()
}

func (t *Telescope) setAtHome() {
	t.axis1.AbortSlew()
	t.axis2.AbortSlew()
	t.axis1.SetMotorCoordinateSteps(0)
	t.axis2.SetMotorCoordinateSteps(0)

	home2 := t.opts.HomeAxis2
	if t.transform.MountType.IsEquatorial() && t.transform.Site().Latitude.Value < 0 {
		home2 = -home2
	}
	t.axis1.SetInstrumentCoordinate(t.opts.HomeAxis1)
	t.axis2.SetInstrumentCoordinate(home2)

	t.atHome = true
	t.tracking = false
	t.slewing = false
	t.safetyLimitsOn = false
	t.updatePosition()
}

// SyncToEncoders reconciles axes and absolute encoders. Right after a sync
// the encoders are re-anchored to the axes; otherwise the axes take the
// encoder positions.
func (t *Telescope) SyncToEncoders() core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.axis1.HasEncoder() || !t.axis2.HasEncoder() {
		return t.fail(core.CeNotReady)
	}
	if t.slewing {
		return t.fail(core.CeSlewInProgress)
	}
	e1, err := t.axis1.ReadEncoder()
	if err != nil {
		return t.fail(core.CeSlewErrHardwareFault)
	}
	e2, err := t.axis2.ReadEncoder()
	if err != nil {
		return t.fail(core.CeSlewErrHardwareFault)
	}

	if t.syncToEncodersOnly {
		t.encoderOffset1 = t.axis1.InstrumentCoordinate() - e1
		t.encoderOffset2 = t.axis2.InstrumentCoordinate() - e2
		t.syncToEncodersOnly = false
		return core.CeNone
	}
	t.axis1.SetInstrumentCoordinate(e1 + t.encoderOffset1)
	t.axis2.SetInstrumentCoordinate(e2 + t.encoderOffset2)
	t.atHome = false
	return core.CeNone
}

func (t *Telescope) fail(e core.CommandError) core.CommandError {
	t.lastError = e
	return e
}

// Position returns the current topocentric position
func (t *Telescope) Position() astro.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updatePosition()
	c := t.position
	t.transform.MountToTopocentric(&c)
	return c
}

// MountPosition returns the current mount-frame position
func (t *Telescope) MountPosition() astro.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updatePosition()
	return t.position
}

// Target returns the last goto or sync target
func (t *Telescope) Target() astro.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Status returns a snapshot of the mount state
func (t *Telescope) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updatePosition()
	return Status{
		Tracking:           t.tracking,
		Slewing:            t.slewing,
		AtHome:             t.atHome,
		SafetyLimitsOn:     t.safetyLimitsOn,
		SyncToEncodersOnly: t.syncToEncodersOnly,
		Fault:              t.axis1.Fault() || t.axis2.Fault(),
		PierSide:           t.position.PierSide,
		LastError:          t.lastError,
	}
}

// Axes returns the two axes
func (t *Telescope) Axes() (*axis.Axis, *axis.Axis) {
	return t.axis1, t.axis2
}
