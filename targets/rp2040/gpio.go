//go:build rp2040

package main

import (
	"errors"
	"machine"

	"gomount/core"
)

// RP2040 has GPIO0-GPIO29
const numGPIO = 30

var errBadPin = errors.New("no such gpio")

// RPGPIODriver implements core.GPIODriver on the RP2040 pins. Pin numbers
// map directly to GPIO numbers.
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin >= numGPIO {
		return errBadPin
	}
	// reconfiguring an owned pin is fine
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = p
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// ConfigureInputPullUp configures a pin as a digital input with pull-up
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

// SetPin drives an output, configuring it first if needed
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.configuredPins[pin]
	}
	p.Set(value)
	return nil
}

// ReadPin reads the pin level; an unconfigured pin reads low
func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	p, exists := d.configuredPins[pin]
	if !exists {
		return false
	}
	return p.Get()
}
