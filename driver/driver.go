// Package driver implements stepper driver chips behind one capability
// interface: microstep resolution, current, decay mode, enable and fault.
package driver

import (
	"errors"
	"strings"
)

var (
	ErrUnsupported = errors.New("driver: not supported by this chip")
	ErrMicrosteps  = errors.New("driver: microstep resolution not available")
	ErrUnknown     = errors.New("driver: unknown model")
)

// Model selects a chip family
type Model uint8

const (
	ModelGeneric Model = iota // plain step/dir, no mode pins
	ModelA4988
	ModelDRV8825
	ModelTMC2130
	ModelTMC5160
	ModelCoil // four-wire coil sequencer
)

var modelNames = map[string]Model{
	"generic": ModelGeneric,
	"a4988":   ModelA4988,
	"drv8825": ModelDRV8825,
	"tmc2130": ModelTMC2130,
	"tmc5160": ModelTMC5160,
	"coil":    ModelCoil,
}

// ParseModel maps a configuration name to a Model
func ParseModel(name string) (Model, error) {
	m, ok := modelNames[strings.ToLower(name)]
	if !ok {
		return 0, ErrUnknown
	}
	return m, nil
}

func (m Model) String() string {
	for name, v := range modelNames {
		if v == m {
			return name
		}
	}
	return "unknown"
}

// Decay is the current decay (chopper) mode
type Decay uint8

const (
	DecaySlow Decay = iota
	DecayMixed
	DecayFast
	DecayStealthChop
	DecaySpreadCycle
)

// Status is a snapshot of the driver condition
type Status struct {
	Enabled     bool
	Fault       bool
	OverTemp    bool
	OverTempPre bool
	ShortA      bool
	ShortB      bool
	OpenLoadA   bool
	OpenLoadB   bool
	Standstill  bool
}

// Driver is a stepper driver chip
type Driver interface {
	// SetMicrosteps applies microsteps per full step. Fast enough to call
	// from the step callback.
	SetMicrosteps(microsteps int) error

	// SetCurrent sets run and hold current in mA
	SetCurrent(runMA, holdMA int) error

	SetDecayMode(mode Decay) error
	Enable(on bool) error
	Fault() bool
	Status() Status
	Name() string
}
