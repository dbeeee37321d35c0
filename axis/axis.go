// Package axis owns the position of one motor and turns a target
// coordinate into timed step pulses, taking up mechanical backlash on
// direction changes.
package axis

import (
	"math"

	"gomount/core"
)

// Hardware limits of the step callback, in microseconds of half period
const (
	HardwareMinPeriod = 2.0
	maxPeriod         = 134000000.0
)

// Driver is what the axis needs from its stepper driver chip
type Driver interface {
	// SetMicrosteps applies a microstep resolution (microsteps per full step).
	// May be called from the step callback.
	SetMicrosteps(microsteps int) error
	Enable(on bool) error
	Fault() bool
}

// Encoder reads an absolute position in counts
type Encoder interface {
	Read() (int64, error)
}

// phase is the half of a step the next callback performs
type phase uint8

const (
	phaseDirection phase = iota // settle direction, update counters
	phasePulse                  // raise the step line
)

// MicrostepState records which microstep resolution the axis runs at and
// whether a switch is pending. Switches are committed only at the start of
// a direction phase, never mid-pulse.
type MicrostepState uint8

const (
	MicrostepTracking MicrostepState = iota
	MicrostepSlewingReady
	MicrostepSlewing
	MicrostepTrackingReady
)

func (m MicrostepState) String() string {
	switch m {
	case MicrostepSlewingReady:
		return "slewing-ready"
	case MicrostepSlewing:
		return "slewing"
	case MicrostepTrackingReady:
		return "tracking-ready"
	}
	return "tracking"
}

// Config describes the fixed properties of an axis
type Config struct {
	Index uint8

	// StepsPerMeasure converts measures (radians for the mount axes) into
	// steps at the tracking microstep resolution.
	StepsPerMeasure float64

	// MicrostepsTracking and MicrostepsSlewing select the driver resolution
	// for each mode. Switching is off unless slewing is coarser.
	MicrostepsTracking int
	MicrostepsSlewing  int

	// SlewingFrequency is the rate in measures per second from which the
	// slewing resolution is used
	SlewingFrequency float64
}

// Axis is one motor. Fields shared with the step callback are only touched
// inside a critical section.
type Axis struct {
	index   uint8
	stepper core.StepperBackend
	timer   core.PeriodicTimer
	driver  Driver

	encoder      Encoder
	encoderScale float64

	spm float64

	// shared with Step
	motorSteps     int64
	targetSteps    int64
	backlashSteps  int64
	backlashAmount int64
	tracking       bool
	trackingStep   int64
	ph             phase
	takeStep       bool
	reverse        bool
	dirSet         bool
	fastPath       bool
	ustep          MicrostepState
	stepSize       int64
	slewStepSize   int64
	basePeriod     uint32

	// command context only
	indexSteps         int64
	minSteps           int64
	maxSteps           int64
	minPeriodHalf      float64
	enabled            bool
	microstepsTracking int
	microstepsSlewing  int
	slewingFrequency   float64
	frequency          float64
	ramp               ramp
}

// New creates an axis. It has no timer until Attach is called.
func New(cfg Config, stepper core.StepperBackend) *Axis {
	a := &Axis{
		index:              cfg.Index,
		stepper:            stepper,
		spm:                1,
		stepSize:           1,
		slewStepSize:       1,
		trackingStep:       1,
		minSteps:           math.MinInt32,
		maxSteps:           math.MaxInt32,
		microstepsTracking: cfg.MicrostepsTracking,
		microstepsSlewing:  cfg.MicrostepsSlewing,
		slewingFrequency:   cfg.SlewingFrequency,
	}
	if cfg.StepsPerMeasure > 0 {
		a.spm = cfg.StepsPerMeasure
	}
	if cfg.MicrostepsSlewing > 0 && cfg.MicrostepsTracking > cfg.MicrostepsSlewing {
		a.slewStepSize = int64(cfg.MicrostepsTracking / cfg.MicrostepsSlewing)
	}
	return a
}

// Attach sets the periodic timer whose callback is Step
func (a *Axis) Attach(timer core.PeriodicTimer) {
	a.timer = timer
}

// AttachDriver sets the driver used for enable, fault and microstep control
func (a *Axis) AttachDriver(d Driver) {
	a.driver = d
}

// Index returns the axis number
func (a *Axis) Index() uint8 {
	return a.index
}

// StepsPerMeasure returns the conversion factor at tracking resolution
func (a *Axis) StepsPerMeasure() float64 {
	return a.spm
}

// Step is the periodic callback. Two calls make one physical step: the
// direction phase ends the previous pulse, commits any microstep switch and
// moves the counters; the pulse phase raises the step line.
func (a *Axis) Step() {
	switch a.ph {
	case phaseDirection:
		a.stepper.SetStep(false)
		a.commitMicrostep()
		a.takeStep = a.advance()
		a.ph = phasePulse

	case phasePulse:
		if a.takeStep {
			a.stepper.SetStep(true)
		}
		if a.tracking {
			a.targetSteps += a.trackingStep
		}
		a.ph = phaseDirection
	}
}

func (a *Axis) commitMicrostep() {
	switch a.ustep {
	case MicrostepSlewingReady:
		diff := a.targetSteps - a.motorSteps
		if a.motorSteps%a.slewStepSize != 0 || abs64(diff) < a.slewStepSize {
			return
		}
		if !a.applyMicrosteps(a.microstepsSlewing, a.slewStepSize) {
			a.ustep = MicrostepTracking
			return
		}
		a.ustep = MicrostepSlewing

	case MicrostepTrackingReady:
		// a refused switch keeps counting coarse steps and retries next phase
		if a.applyMicrosteps(a.microstepsTracking, 1) {
			a.ustep = MicrostepTracking
		}
	}
}

// applyMicrosteps switches the driver resolution. The step size follows
// only when the driver accepted it.
func (a *Axis) applyMicrosteps(microsteps int, stepSize int64) bool {
	if a.driver != nil && microsteps > 0 {
		if err := a.driver.SetMicrosteps(microsteps); err != nil {
			core.RecordTiming(core.EvtFault, a.index, uint32(microsteps), 0)
			return false
		}
	}
	a.stepSize = stepSize
	core.RecordTiming(core.EvtMicrostep, a.index, uint32(microsteps), uint32(stepSize))
	if a.timer != nil {
		a.timer.SetPeriodLocked(a.effectivePeriod())
	}
	return true
}

func (a *Axis) effectivePeriod() uint32 {
	p := uint64(a.basePeriod) * uint64(a.stepSize)
	if p > math.MaxUint32 {
		p = math.MaxUint32
	}
	return uint32(p)
}

// advance moves the backlash or motor counter one step toward the target
// and reports whether a pulse is needed.
func (a *Axis) advance() bool {
	if a.fastPath {
		if a.dirSet && !a.reverse && a.backlashSteps == a.backlashAmount &&
			a.motorSteps+a.stepSize <= a.targetSteps {
			a.motorSteps += a.stepSize
			return true
		}
		if a.dirSet && a.reverse && a.backlashSteps == 0 &&
			a.motorSteps-a.stepSize >= a.targetSteps {
			a.motorSteps -= a.stepSize
			return true
		}
	}

	diff := a.targetSteps - a.motorSteps
	if diff == 0 {
		return false
	}
	if abs64(diff) < a.stepSize {
		// too close for coarse steps, drop back to tracking resolution
		a.ustep = MicrostepTrackingReady
		return false
	}

	if diff > 0 {
		a.setDirection(false)
		if a.backlashSteps < a.backlashAmount {
			a.backlashSteps = min64(a.backlashSteps+a.stepSize, a.backlashAmount)
		} else {
			a.motorSteps += a.stepSize
		}
	} else {
		a.setDirection(true)
		if a.backlashSteps > 0 {
			a.backlashSteps = max64(a.backlashSteps-a.stepSize, 0)
		} else {
			a.motorSteps -= a.stepSize
		}
	}
	return true
}

func (a *Axis) setDirection(reverse bool) {
	if a.dirSet && a.reverse == reverse {
		return
	}
	a.stepper.SetDirection(reverse)
	a.reverse = reverse
	a.dirSet = true
}

// SetFastPath lets single-direction slews skip backlash bookkeeping once
// the backlash is taken up
func (a *Axis) SetFastPath(on bool) {
	state := core.DisableInterrupts()
	a.fastPath = on
	core.RestoreInterrupts(state)
}

// SetFrequencyMax sets the fastest allowed rate in measures per second
func (a *Axis) SetFrequencyMax(freq float64) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		a.minPeriodHalf = 0
		return
	}
	minPeriod := 1000000.0 / (freq * a.spm)
	a.minPeriodHalf = minPeriod / 2
}

// MinPeriodHalf returns the shortest callback period in microseconds
func (a *Axis) MinPeriodHalf() float64 {
	return a.minPeriodHalf
}

// SetFrequency sets the speed in measures per second; the sign is ignored
// since direction follows the target. Rates that cannot be generated stop
// the axis.
func (a *Axis) SetFrequency(freq float64) {
	freq = math.Abs(freq)

	var period float64
	if freq != 0 && !math.IsNaN(freq) && !math.IsInf(freq, 0) {
		period = 500000.0 / (freq * a.spm)
	}

	var sub uint32
	if period > 0 && period < maxPeriod {
		if period < a.minPeriodHalf {
			period = a.minPeriodHalf
		}
		if period >= HardwareMinPeriod {
			sub = uint32(period*core.SubMicros + 0.5)
		}
	}
	wantSlew := sub != 0 && a.slewStepSize > 1 && a.slewingFrequency > 0 && freq >= a.slewingFrequency

	state := core.DisableInterrupts()
	a.basePeriod = sub
	switch {
	case wantSlew && a.ustep == MicrostepTracking:
		a.ustep = MicrostepSlewingReady
	case wantSlew && a.ustep == MicrostepTrackingReady:
		a.ustep = MicrostepSlewing
	case !wantSlew && a.ustep == MicrostepSlewingReady:
		a.ustep = MicrostepTracking
	case !wantSlew && a.ustep == MicrostepSlewing:
		a.ustep = MicrostepTrackingReady
	}
	if sub == 0 {
		a.stepper.SetStep(false)
		a.ph = phaseDirection
	}
	if a.timer != nil {
		a.timer.SetPeriodLocked(a.effectivePeriod())
	}
	core.RestoreInterrupts(state)

	if sub == 0 {
		freq = 0
	}
	if freq != a.frequency {
		core.RecordTiming(core.EvtFrequency, a.index, sub, uint32(a.ustep))
	}
	a.frequency = freq
}

// Frequency returns the last applied rate in measures per second, 0 when stopped
func (a *Axis) Frequency() float64 {
	return a.frequency
}

// Period returns the published base callback period in 1/16 us units
func (a *Axis) Period() uint32 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.basePeriod
}

// MicrostepState returns the microstep mode sub-state
func (a *Axis) MicrostepState() MicrostepState {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.ustep
}

// StepSize returns the counter increment per pulse at the current resolution
func (a *Axis) StepSize() int64 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.stepSize
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
