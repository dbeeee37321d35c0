package driver

import (
	"fmt"

	"gomount/core"
)

// modeTable maps microsteps to the levels of the mode pins (bit 0 = first pin)
type modeTable map[int]uint8

var (
	a4988Modes = modeTable{1: 0b000, 2: 0b001, 4: 0b010, 8: 0b011, 16: 0b111}

	drv8825Modes = modeTable{1: 0b000, 2: 0b001, 4: 0b010, 8: 0b011, 16: 0b100, 32: 0b101}
)

// StepDirPins are the optional control pins of a step/dir chip.
// Unused pins are core.PinNone.
type StepDirPins struct {
	Enable core.GPIOPin    // active low
	Mode   [3]core.GPIOPin // MS1..MS3 or M0..M2
	Decay  core.GPIOPin    // DRV8825 DECAY
	Fault  core.GPIOPin    // DRV8825 nFAULT, active low
}

// NoPins returns a pin set with nothing connected
func NoPins() StepDirPins {
	return StepDirPins{
		Enable: core.PinNone,
		Mode:   [3]core.GPIOPin{core.PinNone, core.PinNone, core.PinNone},
		Decay:  core.PinNone,
		Fault:  core.PinNone,
	}
}

// StepDir is a step/dir chip whose resolution is set by mode pins
type StepDir struct {
	model   Model
	pins    StepDirPins
	modes   modeTable
	enabled bool
}

// NewStepDir creates a driver for the generic, A4988 or DRV8825 families
func NewStepDir(model Model, pins StepDirPins) (*StepDir, error) {
	d := &StepDir{model: model, pins: pins}
	switch model {
	case ModelGeneric:
	case ModelA4988:
		d.modes = a4988Modes
	case ModelDRV8825:
		d.modes = drv8825Modes
	default:
		return nil, fmt.Errorf("stepdir %v: %w", model, ErrUnknown)
	}
	return d, nil
}

// Init configures the connected pins and leaves the chip disabled
func (d *StepDir) Init() error {
	gpio := core.MustGPIO()
	outputs := append([]core.GPIOPin{d.pins.Enable, d.pins.Decay}, d.pins.Mode[:]...)
	for _, pin := range outputs {
		if !pin.Wired() {
			continue
		}
		if err := gpio.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	if d.pins.Fault.Wired() {
		if err := gpio.ConfigureInputPullUp(d.pins.Fault); err != nil {
			return err
		}
	}
	return d.Enable(false)
}

func (d *StepDir) Name() string {
	return d.model.String()
}

func (d *StepDir) SetMicrosteps(microsteps int) error {
	if d.modes == nil {
		if microsteps == 1 {
			return nil
		}
		return ErrMicrosteps
	}
	bits, ok := d.modes[microsteps]
	if !ok {
		return ErrMicrosteps
	}
	for i, pin := range d.pins.Mode {
		if !pin.Wired() {
			continue
		}
		gpioDriverSet(pin, bits&(1<<i) != 0)
	}
	return nil
}

func (d *StepDir) SetCurrent(runMA, holdMA int) error {
	// set by the reference potentiometer
	return ErrUnsupported
}

func (d *StepDir) SetDecayMode(mode Decay) error {
	if d.model != ModelDRV8825 || !d.pins.Decay.Wired() {
		return ErrUnsupported
	}
	switch mode {
	case DecaySlow:
		gpioDriverSet(d.pins.Decay, false)
	case DecayFast:
		gpioDriverSet(d.pins.Decay, true)
	default:
		// mixed decay needs the pin floating
		return ErrUnsupported
	}
	return nil
}

func (d *StepDir) Enable(on bool) error {
	if d.pins.Enable.Wired() {
		if err := core.MustGPIO().SetPin(d.pins.Enable, !on); err != nil {
			return err
		}
	}
	d.enabled = on
	return nil
}

func (d *StepDir) Fault() bool {
	if !d.pins.Fault.Wired() {
		return false
	}
	return !core.MustGPIO().ReadPin(d.pins.Fault)
}

func (d *StepDir) Status() Status {
	f := d.Fault()
	return Status{Enabled: d.enabled, Fault: f}
}

func gpioDriverSet(pin core.GPIOPin, level bool) {
	core.MustGPIO().SetPin(pin, level)
}
