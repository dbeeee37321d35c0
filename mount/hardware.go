package mount

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"gomount/astro"
	"gomount/axis"
	"gomount/config"
	"gomount/core"
	"gomount/driver"
	"gomount/encoder"
)

// slewingFrequency is the axis rate from which the slewing microstep
// resolution is used
const slewingFrequency = astro.SiderealRate * 64

var errNoSPI = errors.New("tmc driver needs an SPI bus")

// Hardware is what a board hands to the mount
type Hardware struct {
	GPIO core.GPIODriver

	// SPI is the bus for TMC drivers; nil when none is fitted
	SPI drivers.SPI

	// NewStepper returns the step backend of an axis. Nil selects
	// core.GPIOStepper.
	NewStepper func(index uint8) core.StepperBackend

	// NewTimer returns a stopped periodic timer calling fn. Nil selects
	// core.SoftPeriodic on the timer list.
	NewTimer func(fn func()) core.PeriodicTimer

	// Encoders are the absolute encoder buses, nil where none is fitted
	Encoders [2]encoder.FrameReader

	// Now seeds the observatory date and time. Nil starts at J2000.
	Now func() time.Time
}

func (hw *Hardware) newTimer(fn func()) core.PeriodicTimer {
	if hw.NewTimer != nil {
		return hw.NewTimer(fn)
	}
	return core.NewSoftPeriodic(fn)
}

// buildDriver creates the driver chip of an axis. Coil drivers are their
// own step backend and are returned as such.
func buildDriver(ac *config.AxisConfig, bus drivers.SPI) (driver.Driver, core.StepperBackend, error) {
	model, err := driver.ParseModel(ac.Driver)
	if err != nil {
		return nil, nil, err
	}

	switch model {
	case driver.ModelCoil:
		var pins [4]core.GPIOPin
		for i, name := range ac.CoilPins {
			if pins[i], err = config.ParsePin(name); err != nil {
				return nil, nil, err
			}
		}
		c := driver.NewCoil(pins)
		return c, c, nil

	case driver.ModelTMC2130, driver.ModelTMC5160:
		if bus == nil {
			return nil, nil, errNoSPI
		}
		cs, err := config.ParsePin(ac.CSPin)
		if err != nil {
			return nil, nil, err
		}
		enable, err := config.ParsePin(ac.EnablePin)
		if err != nil {
			return nil, nil, err
		}
		t, err := driver.NewTMC(model, bus, cs, enable, ac.SenseResistor)
		if err != nil {
			return nil, nil, err
		}
		return t, nil, t.Init()
	}

	pins := driver.NoPins()
	if pins.Enable, err = config.ParsePin(ac.EnablePin); err != nil {
		return nil, nil, err
	}
	if pins.Decay, err = config.ParsePin(ac.DecayPin); err != nil {
		return nil, nil, err
	}
	if pins.Fault, err = config.ParsePin(ac.FaultPin); err != nil {
		return nil, nil, err
	}
	for i, name := range ac.ModePins {
		if pins.Mode[i], err = config.ParsePin(name); err != nil {
			return nil, nil, err
		}
	}
	d, err := driver.NewStepDir(model, pins)
	if err != nil {
		return nil, nil, err
	}
	return d, nil, d.Init()
}

// buildAxis creates one mount axis with its driver, step backend, timer and
// optional encoder
func (m *Manager) buildAxis(index uint8, ac *config.AxisConfig, hw *Hardware) (*axis.Axis, error) {
	drv, backend, err := buildDriver(ac, hw.SPI)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		if hw.NewStepper != nil {
			backend = hw.NewStepper(index)
		} else {
			backend = core.NewGPIOStepper()
		}
	}

	stepPin, dirPin, err := ac.Pins()
	if err != nil {
		return nil, err
	}
	if err := backend.Init(stepPin, dirPin, ac.InvertStep, ac.InvertDir); err != nil {
		return nil, err
	}

	if drv.Name() != driver.ModelGeneric.String() {
		if err := drv.SetMicrosteps(ac.MicrostepsTracking); err != nil {
			return nil, err
		}
	}
	if ac.RunCurrent > 0 {
		if err := drv.SetCurrent(ac.RunCurrent, ac.HoldCurrent); err != nil && !errors.Is(err, driver.ErrUnsupported) {
			return nil, err
		}
	}

	a := axis.New(axis.Config{
		Index:              index,
		StepsPerMeasure:    ac.StepsPerRadian(),
		MicrostepsTracking: ac.MicrostepsTracking,
		MicrostepsSlewing:  ac.MicrostepsSlewing,
		SlewingFrequency:   slewingFrequency,
	}, backend)
	a.AttachDriver(drv)
	a.SetBacklash(ac.BacklashRadians())
	a.SetMinCoordinate(astro.DegToRad(ac.MinDegrees))
	a.SetMaxCoordinate(astro.DegToRad(ac.MaxDegrees))
	a.SetFrequencyMax(astro.DegToRad(m.config.MaxRate))

	timer := hw.newTimer(a.Step)
	a.Attach(timer)
	m.timers = append(m.timers, timer)
	m.drivers[index] = drv

	if src := hw.Encoders[index]; src != nil && ac.EncoderCountsPerDegree > 0 {
		enc := encoder.NewChecked(src)
		a.AttachEncoder(enc, ac.EncoderCountsPerRadian())
		m.encoders[index] = enc
	}
	return a, nil
}
