package axis

import (
	"errors"
	"math"

	"gomount/core"
)

// ErrNoEncoder is returned by ReadEncoder on an axis without an encoder
var ErrNoEncoder = errors.New("axis has no encoder")

func (a *Axis) toSteps(measure float64) int64 {
	return int64(math.Round(measure * a.spm))
}

// SetStepsPerMeasure changes the conversion factor. Call before the axis
// is positioned.
func (a *Axis) SetStepsPerMeasure(spm float64) {
	if spm > 0 && !math.IsInf(spm, 0) {
		a.spm = spm
	}
}

// SetMotorCoordinateSteps sets the raw motor position without moving. The
// target follows, the index offset is reset and backlash is cleared.
func (a *Axis) SetMotorCoordinateSteps(steps int64) {
	state := core.DisableInterrupts()
	a.motorSteps = steps
	a.targetSteps = steps
	a.backlashSteps = 0
	core.RestoreInterrupts(state)
	a.indexSteps = 0
}

// MotorCoordinateSteps returns the raw motor position
func (a *Axis) MotorCoordinateSteps() int64 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.motorSteps
}

// TargetSteps returns the raw motor target
func (a *Axis) TargetSteps() int64 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.targetSteps
}

// BacklashSteps returns the slack currently taken up
func (a *Axis) BacklashSteps() int64 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.backlashSteps
}

// SetInstrumentCoordinate declares the axis to be at value (measures) by
// moving the index offset, not the motor.
func (a *Axis) SetInstrumentCoordinate(value float64) {
	steps := a.toSteps(value)
	state := core.DisableInterrupts()
	motor := a.motorSteps
	core.RestoreInterrupts(state)
	a.indexSteps = steps - motor
}

// InstrumentCoordinate returns the position in measures
func (a *Axis) InstrumentCoordinate() float64 {
	state := core.DisableInterrupts()
	motor := a.motorSteps
	core.RestoreInterrupts(state)
	return float64(motor+a.indexSteps) / a.spm
}

// IndexSteps returns the offset between motor and instrument steps
func (a *Axis) IndexSteps() int64 {
	return a.indexSteps
}

// SetTargetCoordinate sets the destination in measures
func (a *Axis) SetTargetCoordinate(value float64) {
	steps := a.toSteps(value) - a.indexSteps
	state := core.DisableInterrupts()
	a.targetSteps = steps
	core.RestoreInterrupts(state)
}

// TargetCoordinate returns the destination in measures
func (a *Axis) TargetCoordinate() float64 {
	state := core.DisableInterrupts()
	target := a.targetSteps
	core.RestoreInterrupts(state)
	return float64(target+a.indexSteps) / a.spm
}

// SetBacklash sets the mechanical slack in measures
func (a *Axis) SetBacklash(value float64) {
	steps := a.toSteps(math.Abs(value))
	state := core.DisableInterrupts()
	a.backlashAmount = steps
	if a.backlashSteps > steps {
		a.backlashSteps = steps
	}
	core.RestoreInterrupts(state)
}

// Backlash returns the configured slack in measures
func (a *Axis) Backlash() float64 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return float64(a.backlashAmount) / a.spm
}

// SetMinCoordinate sets the lower travel limit in measures
func (a *Axis) SetMinCoordinate(value float64) {
	a.minSteps = a.toSteps(value)
}

// SetMaxCoordinate sets the upper travel limit in measures
func (a *Axis) SetMaxCoordinate(value float64) {
	a.maxSteps = a.toSteps(value)
}

// MinCoordinate returns the lower travel limit in measures
func (a *Axis) MinCoordinate() float64 {
	return float64(a.minSteps) / a.spm
}

// MaxCoordinate returns the upper travel limit in measures
func (a *Axis) MaxCoordinate() float64 {
	return float64(a.maxSteps) / a.spm
}

// WithinLimits reports whether an instrument coordinate lies inside the
// travel limits
func (a *Axis) WithinLimits(value float64) bool {
	steps := a.toSteps(value)
	return steps >= a.minSteps && steps <= a.maxSteps
}

// SetTracking turns the per-pulse target advance on or off
func (a *Axis) SetTracking(on bool) {
	state := core.DisableInterrupts()
	a.tracking = on
	core.RestoreInterrupts(state)
}

// SetTrackingStep sets the target advance per pulse while tracking
func (a *Axis) SetTrackingStep(step int64) {
	state := core.DisableInterrupts()
	a.trackingStep = step
	core.RestoreInterrupts(state)
}

// Tracking reports whether the target follows the sky
func (a *Axis) Tracking() bool {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.tracking
}

// AtTarget reports whether the motor has reached the target
func (a *Axis) AtTarget() bool {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return a.targetSteps == a.motorSteps
}

// Distance returns the remaining travel in measures
func (a *Axis) Distance() float64 {
	state := core.DisableInterrupts()
	diff := a.targetSteps - a.motorSteps
	core.RestoreInterrupts(state)
	return math.Abs(float64(diff)) / a.spm
}

// Stop halts the axis where it is
func (a *Axis) Stop() {
	a.ramp.active = false
	a.SetFrequency(0)
	state := core.DisableInterrupts()
	a.targetSteps = a.motorSteps
	a.tracking = false
	core.RestoreInterrupts(state)
}

// Enable powers the driver
func (a *Axis) Enable(on bool) error {
	if a.driver != nil {
		if err := a.driver.Enable(on); err != nil {
			return err
		}
	}
	a.enabled = on
	if !on {
		a.Stop()
	}
	return nil
}

// Enabled reports whether the axis is powered
func (a *Axis) Enabled() bool {
	return a.enabled
}

// Fault reports a driver fault
func (a *Axis) Fault() bool {
	if a.driver != nil && a.driver.Fault() {
		core.RecordTiming(core.EvtFault, a.index, 0, 0)
		return true
	}
	return false
}

// AttachEncoder sets an absolute encoder with its counts per measure
func (a *Axis) AttachEncoder(enc Encoder, countsPerMeasure float64) {
	a.encoder = enc
	a.encoderScale = countsPerMeasure
}

// HasEncoder reports whether an encoder is attached
func (a *Axis) HasEncoder() bool {
	return a.encoder != nil
}

// ReadEncoder returns the encoder position as an instrument coordinate
func (a *Axis) ReadEncoder() (float64, error) {
	if a.encoder == nil || a.encoderScale == 0 {
		return 0, ErrNoEncoder
	}
	counts, err := a.encoder.Read()
	if err != nil {
		core.RecordTiming(core.EvtEncoderErr, a.index, 0, 0)
		return 0, err
	}
	return float64(counts) / a.encoderScale, nil
}
