package core

// GPIOPin is a pin number as the board names it
type GPIOPin uint32

// PinNone marks an optional pin that is not wired
const PinNone GPIOPin = 0xFFFFFFFF

// Wired reports whether p names a real pin
func (p GPIOPin) Wired() bool {
	return p != PinNone
}

// GPIODriver is the pin-level interface the mount drives. Boards and the
// host simulator register one with SetGPIODriver.
type GPIODriver interface {
	// ConfigureOutput makes pin a push-pull output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp makes pin an input with the pull-up enabled;
	// driver fault lines are open-drain and active low
	ConfigureInputPullUp(pin GPIOPin) error

	// SetPin drives an output; called from timer callbacks, must not block
	SetPin(pin GPIOPin, value bool) error

	// ReadPin samples the pin level
	ReadPin(pin GPIOPin) bool
}

var gpioDriver GPIODriver

// SetGPIODriver registers the board's pin driver
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the registered driver. Building a mount without one is a
// wiring bug, so it panics.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
