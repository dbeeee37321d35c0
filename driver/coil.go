package driver

import "gomount/core"

// halfStepSequence energizes coils A, B, A', B' (bit 0 first)
var halfStepSequence = [8]uint8{
	0b0001,
	0b0011,
	0b0010,
	0b0110,
	0b0100,
	0b1100,
	0b1000,
	0b1001,
}

// Coil drives a four-wire stepper directly through GPIO, walking the
// half-step coil sequence. It is both the axis stepper backend and its
// driver: one microstep is a half step, full steps skip every other entry.
type Coil struct {
	pins    [4]core.GPIOPin
	pos     int
	stride  int
	reverse bool
	enabled bool
}

// NewCoil creates a coil sequencer on four pins
func NewCoil(pins [4]core.GPIOPin) *Coil {
	return &Coil{pins: pins, stride: 1}
}

// Init configures the coil pins. The step and direction pins are unused.
func (c *Coil) Init(stepPin, dirPin core.GPIOPin, invertStep, invertDir bool) error {
	gpio := core.MustGPIO()
	for _, pin := range c.pins {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return err
		}
		gpio.SetPin(pin, false)
	}
	c.reverse = invertDir
	return nil
}

// SetStep advances the sequence on the active edge
func (c *Coil) SetStep(active bool) {
	if !active {
		return
	}
	if c.reverse {
		c.pos -= c.stride
	} else {
		c.pos += c.stride
	}
	for c.pos < 0 {
		c.pos += len(halfStepSequence)
	}
	c.pos %= len(halfStepSequence)
	if c.enabled {
		c.energize()
	}
}

func (c *Coil) SetDirection(reverse bool) {
	c.reverse = reverse
}

// Stop keeps the coils energized to hold position
func (c *Coil) Stop() {}

func (c *Coil) GetName() string {
	return "coil"
}

func (c *Coil) Name() string {
	return "coil"
}

// Phase returns the position in the coil sequence
func (c *Coil) Phase() int {
	return c.pos
}

func (c *Coil) energize() {
	v := halfStepSequence[c.pos]
	for i, pin := range c.pins {
		gpioDriverSet(pin, v&(1<<i) != 0)
	}
}

func (c *Coil) release() {
	for _, pin := range c.pins {
		gpioDriverSet(pin, false)
	}
}

func (c *Coil) SetMicrosteps(microsteps int) error {
	switch microsteps {
	case 1:
		c.stride = 2
	case 2:
		c.stride = 1
	default:
		return ErrMicrosteps
	}
	return nil
}

func (c *Coil) SetCurrent(runMA, holdMA int) error {
	return ErrUnsupported
}

func (c *Coil) SetDecayMode(mode Decay) error {
	return ErrUnsupported
}

func (c *Coil) Enable(on bool) error {
	c.enabled = on
	if on {
		c.energize()
	} else {
		c.release()
	}
	return nil
}

func (c *Coil) Fault() bool {
	return false
}

func (c *Coil) Status() Status {
	return Status{Enabled: c.enabled}
}
