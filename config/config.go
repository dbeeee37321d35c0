// Package config holds the mount configuration: pins, drivers, gearing,
// site and limits. Angles are in degrees here and converted to radians
// when the mount is built.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gomount/astro"
	"gomount/core"
	"gomount/driver"
)

// AxisConfig represents configuration for a single mount axis
type AxisConfig struct {
	StepPin    string `json:"step_pin" koanf:"step_pin" yaml:"step_pin"`
	DirPin     string `json:"dir_pin" koanf:"dir_pin" yaml:"dir_pin"`
	InvertStep bool   `json:"invert_step" koanf:"invert_step" yaml:"invert_step"`
	InvertDir  bool   `json:"invert_dir" koanf:"invert_dir" yaml:"invert_dir"`

	// Driver is the chip family: generic, a4988, drv8825, tmc2130, tmc5160, coil
	Driver    string   `json:"driver" koanf:"driver" yaml:"driver"`
	EnablePin string   `json:"enable_pin" koanf:"enable_pin" yaml:"enable_pin"`
	ModePins  []string `json:"mode_pins" koanf:"mode_pins" yaml:"mode_pins"` // M0..M2 for step/dir chips
	DecayPin  string   `json:"decay_pin" koanf:"decay_pin" yaml:"decay_pin"`
	FaultPin  string   `json:"fault_pin" koanf:"fault_pin" yaml:"fault_pin"`
	CSPin     string   `json:"cs_pin" koanf:"cs_pin" yaml:"cs_pin"`          // TMC chip select
	CoilPins  []string `json:"coil_pins" koanf:"coil_pins" yaml:"coil_pins"` // four pins for coil drivers

	StepsPerDegree     float64 `json:"steps_per_degree" koanf:"steps_per_degree" yaml:"steps_per_degree"` // at tracking microsteps
	MicrostepsTracking int     `json:"microsteps_tracking" koanf:"microsteps_tracking" yaml:"microsteps_tracking"`
	MicrostepsSlewing  int     `json:"microsteps_slewing" koanf:"microsteps_slewing" yaml:"microsteps_slewing"`
	RunCurrent         int     `json:"run_current_ma" koanf:"run_current_ma" yaml:"run_current_ma"`
	HoldCurrent        int     `json:"hold_current_ma" koanf:"hold_current_ma" yaml:"hold_current_ma"`
	SenseResistor      float64 `json:"sense_resistor" koanf:"sense_resistor" yaml:"sense_resistor"` // ohms

	BacklashArcsec float64 `json:"backlash_arcsec" koanf:"backlash_arcsec" yaml:"backlash_arcsec"`
	MinDegrees     float64 `json:"min_degrees" koanf:"min_degrees" yaml:"min_degrees"`
	MaxDegrees     float64 `json:"max_degrees" koanf:"max_degrees" yaml:"max_degrees"`

	// EncoderCountsPerDegree enables the absolute encoder when non-zero
	EncoderCountsPerDegree float64 `json:"encoder_counts_per_degree" koanf:"encoder_counts_per_degree" yaml:"encoder_counts_per_degree"`
}

// MountConfig represents the complete mount configuration
type MountConfig struct {
	MountType               string `json:"mount_type" koanf:"mount_type" yaml:"mount_type"`          // gem, fork, altaz
	MeridianFlip            string `json:"meridian_flip" koanf:"meridian_flip" yaml:"meridian_flip"` // never, always
	AllowSyncPierSideChange bool   `json:"allow_sync_pier_side_change" koanf:"allow_sync_pier_side_change" yaml:"allow_sync_pier_side_change"`
	Axis2Continuous         bool   `json:"axis2_continuous" koanf:"axis2_continuous" yaml:"axis2_continuous"`

	// Site; longitude is positive west
	Latitude  float64 `json:"latitude" koanf:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" koanf:"longitude" yaml:"longitude"`
	Timezone  float64 `json:"timezone" koanf:"timezone" yaml:"timezone"`

	SlewRate     float64 `json:"slew_rate" koanf:"slew_rate" yaml:"slew_rate"`          // degrees per second
	Acceleration float64 `json:"acceleration" koanf:"acceleration" yaml:"acceleration"` // degrees per second squared
	MaxRate      float64 `json:"max_rate" koanf:"max_rate" yaml:"max_rate"`             // hardware ceiling, degrees per second

	Horizon       float64 `json:"horizon" koanf:"horizon" yaml:"horizon"`
	Overhead      float64 `json:"overhead" koanf:"overhead" yaml:"overhead"`
	PastMeridianE float64 `json:"past_meridian_e" koanf:"past_meridian_e" yaml:"past_meridian_e"`
	PastMeridianW float64 `json:"past_meridian_w" koanf:"past_meridian_w" yaml:"past_meridian_w"`

	Refraction  bool    `json:"refraction" koanf:"refraction" yaml:"refraction"`
	Pressure    float64 `json:"pressure" koanf:"pressure" yaml:"pressure"`          // mb
	Temperature float64 `json:"temperature" koanf:"temperature" yaml:"temperature"` // degrees C

	// SPI bus pins for TMC drivers
	SPISCK string `json:"spi_sck" koanf:"spi_sck" yaml:"spi_sck"`
	SPISDO string `json:"spi_sdo" koanf:"spi_sdo" yaml:"spi_sdo"`
	SPISDI string `json:"spi_sdi" koanf:"spi_sdi" yaml:"spi_sdi"`

	Axis1 AxisConfig `json:"axis1" koanf:"axis1" yaml:"axis1"`
	Axis2 AxisConfig `json:"axis2" koanf:"axis2" yaml:"axis2"`
}

// LoadConfig parses a JSON configuration over the defaults
func LoadConfig(jsonData []byte) (*MountConfig, error) {
	config := DefaultConfig()

	err := json.Unmarshal(jsonData, config)
	if err != nil {
		return nil, err
	}

	applyDefaults(config)

	return config, nil
}

// applyDefaults fills in values that cannot be zero
func applyDefaults(config *MountConfig) {
	if config.MountType == "" {
		config.MountType = "gem"
	}
	if config.MeridianFlip == "" {
		config.MeridianFlip = "always"
	}
	if config.SlewRate == 0 {
		config.SlewRate = 2.0
	}
	if config.Acceleration == 0 {
		config.Acceleration = 1.0
	}
	if config.MaxRate == 0 {
		config.MaxRate = 4.0
	}
	if config.Overhead == 0 {
		config.Overhead = 90.0
	}
	if config.Pressure == 0 {
		config.Pressure = astro.StandardPressure
	}

	for _, axis := range []*AxisConfig{&config.Axis1, &config.Axis2} {
		if axis.Driver == "" {
			axis.Driver = "generic"
		}
		if axis.StepsPerDegree == 0 {
			axis.StepsPerDegree = 12800.0 // 144:1 worm, 200 step motor, 16x
		}
		if axis.MicrostepsTracking == 0 {
			axis.MicrostepsTracking = 16
		}
		if axis.MicrostepsSlewing == 0 {
			axis.MicrostepsSlewing = axis.MicrostepsTracking
		}
		if axis.SenseResistor == 0 {
			axis.SenseResistor = 0.11
		}
	}
}

// DefaultConfig returns a GEM on step/dir drivers with Pico pin assignments
func DefaultConfig() *MountConfig {
	return &MountConfig{
		MountType:     "gem",
		MeridianFlip:  "always",
		Latitude:      40.0,
		Longitude:     75.0,
		Timezone:      5.0,
		SlewRate:      2.0,
		Acceleration:  1.0,
		MaxRate:       4.0,
		Horizon:       -10.0,
		Overhead:      90.0,
		PastMeridianE: 15.0,
		PastMeridianW: 15.0,
		Refraction:    true,
		Pressure:      astro.StandardPressure,
		Temperature:   astro.StandardTemperature,
		SPISCK:        "gpio18",
		SPISDO:        "gpio19",
		SPISDI:        "gpio16",
		Axis1: AxisConfig{
			StepPin:            "gpio2",
			DirPin:             "gpio3",
			Driver:             "generic",
			EnablePin:          "gpio8",
			StepsPerDegree:     12800.0,
			MicrostepsTracking: 16,
			MicrostepsSlewing:  16,
			SenseResistor:      0.11,
			MinDegrees:         -180.0,
			MaxDegrees:         180.0,
		},
		Axis2: AxisConfig{
			StepPin:            "gpio4",
			DirPin:             "gpio5",
			Driver:             "generic",
			EnablePin:          "gpio9",
			StepsPerDegree:     12800.0,
			MicrostepsTracking: 16,
			MicrostepsSlewing:  16,
			SenseResistor:      0.11,
			MinDegrees:         -180.0,
			MaxDegrees:         180.0,
		},
	}
}

// ParsePin converts a pin name such as "gpio12" or "12" into a pin number.
// The empty string and "none" mean no pin.
func ParsePin(name string) (core.GPIOPin, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return core.PinNone, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(name, "gpio"), 10, 8)
	if err != nil {
		return core.PinNone, fmt.Errorf("invalid pin %q", name)
	}
	return core.GPIOPin(n), nil
}

// ParseMountType converts a mount type name
func ParseMountType(name string) (astro.MountType, error) {
	switch strings.ToLower(name) {
	case "gem", "german":
		return astro.MountGEM, nil
	case "fork":
		return astro.MountFork, nil
	case "altaz", "alt-az":
		return astro.MountAltAz, nil
	}
	return astro.MountGEM, fmt.Errorf("unknown mount type %q", name)
}

// Validate checks ranges and names. The first problem found is returned.
func (c *MountConfig) Validate() error {
	if _, err := ParseMountType(c.MountType); err != nil {
		return err
	}
	if c.MeridianFlip != "never" && c.MeridianFlip != "always" {
		return fmt.Errorf("meridian_flip must be never or always, got %q", c.MeridianFlip)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	if c.Timezone < -14 || c.Timezone > 12 {
		return errors.New("timezone out of range")
	}
	if c.SlewRate <= 0 || c.Acceleration <= 0 {
		return errors.New("slew rate and acceleration must be positive")
	}
	if c.MaxRate < c.SlewRate {
		return errors.New("max_rate below slew_rate")
	}
	if c.Horizon < -30 || c.Horizon >= c.Overhead || c.Overhead > 90 {
		return errors.New("horizon/overhead limits out of range")
	}
	if c.PastMeridianE < 0 || c.PastMeridianE > 90 || c.PastMeridianW < 0 || c.PastMeridianW > 90 {
		return errors.New("past meridian limits out of range")
	}

	for i, axis := range []*AxisConfig{&c.Axis1, &c.Axis2} {
		if err := axis.validate(); err != nil {
			return fmt.Errorf("axis%d: %w", i+1, err)
		}
	}
	return nil
}

func (a *AxisConfig) validate() error {
	model, err := driver.ParseModel(a.Driver)
	if err != nil {
		return err
	}
	if a.StepsPerDegree <= 0 || math.IsInf(a.StepsPerDegree, 0) {
		return errors.New("steps_per_degree must be positive")
	}
	if !powerOfTwo(a.MicrostepsTracking) || !powerOfTwo(a.MicrostepsSlewing) {
		return errors.New("microsteps must be a power of two")
	}
	if a.MicrostepsSlewing > a.MicrostepsTracking {
		return errors.New("microsteps_slewing finer than microsteps_tracking")
	}
	if a.MicrostepsSlewing != a.MicrostepsTracking && !canSwitchMicrosteps(model, a.ModePins) {
		return errors.New("driver cannot switch microsteps; set microsteps_slewing to microsteps_tracking")
	}
	if a.MinDegrees >= a.MaxDegrees {
		return errors.New("min_degrees must be below max_degrees")
	}
	if a.BacklashArcsec < 0 {
		return errors.New("negative backlash")
	}

	pins := []string{a.EnablePin, a.DecayPin, a.FaultPin, a.CSPin}
	pins = append(pins, a.ModePins...)
	pins = append(pins, a.CoilPins...)
	if model == driver.ModelCoil {
		if len(a.CoilPins) != 4 {
			return errors.New("coil driver needs four coil_pins")
		}
	} else {
		pins = append(pins, a.StepPin, a.DirPin)
		if a.StepPin == "" || a.DirPin == "" {
			return errors.New("step_pin and dir_pin are required")
		}
	}
	if (model == driver.ModelTMC2130 || model == driver.ModelTMC5160) && a.CSPin == "" {
		return errors.New("tmc driver needs cs_pin")
	}
	if len(a.ModePins) > 3 {
		return errors.New("at most three mode_pins")
	}
	for _, p := range pins {
		if _, err := ParsePin(p); err != nil {
			return err
		}
	}
	return nil
}

// canSwitchMicrosteps reports whether the axis can change resolution at run
// time. Step/dir chips need their mode pins wired.
func canSwitchMicrosteps(model driver.Model, modePins []string) bool {
	switch model {
	case driver.ModelGeneric:
		return false
	case driver.ModelA4988, driver.ModelDRV8825:
		return len(modePins) > 0
	}
	return true
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// StepsPerRadian is the axis gearing at tracking microsteps
func (a *AxisConfig) StepsPerRadian() float64 {
	return a.StepsPerDegree * 180.0 / math.Pi
}

// BacklashRadians converts the configured backlash
func (a *AxisConfig) BacklashRadians() float64 {
	return astro.ArcsecToRad(a.BacklashArcsec)
}

// EncoderCountsPerRadian converts the encoder resolution; zero means no encoder
func (a *AxisConfig) EncoderCountsPerRadian() float64 {
	return a.EncoderCountsPerDegree * 180.0 / math.Pi
}

// Pins returns the parsed step and direction pins
func (a *AxisConfig) Pins() (step, dir core.GPIOPin, err error) {
	if step, err = ParsePin(a.StepPin); err != nil {
		return
	}
	dir, err = ParsePin(a.DirPin)
	return
}
