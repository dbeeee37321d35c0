package driver

import (
	"fmt"
	"math"

	"tinygo.org/x/drivers"

	"gomount/core"
)

// TMC drives a TMC2130 or TMC5160 in step/dir mode, configured over SPI.
// Step and direction come from the axis stepper backend.
type TMC struct {
	model     Model
	bus       drivers.SPI
	csPin     core.GPIOPin
	enablePin core.GPIOPin
	rsense    float64

	chopconf uint32
	gconf    uint32
	enabled  bool
	lastSPI  uint8

	buf [5]byte
	rx  [5]byte
}

// NewTMC creates a TMC driver on bus with chip select csPin. rsense is the
// sense resistor in ohms; 0 selects the chip's reference board value.
func NewTMC(model Model, bus drivers.SPI, csPin, enablePin core.GPIOPin, rsense float64) (*TMC, error) {
	if model != ModelTMC2130 && model != ModelTMC5160 {
		return nil, fmt.Errorf("tmc: %w", ErrUnknown)
	}
	if rsense <= 0 {
		rsense = 0.11
		if model == ModelTMC5160 {
			rsense = 0.075
		}
	}
	return &TMC{
		model:     model,
		bus:       bus,
		csPin:     csPin,
		enablePin: enablePin,
		rsense:    rsense,
		chopconf:  chopconfDefault | chopconfIntpol,
	}, nil
}

// Init configures the pins and writes the base register set
func (t *TMC) Init() error {
	gpio := core.MustGPIO()
	if err := gpio.ConfigureOutput(t.csPin); err != nil {
		return err
	}
	gpio.SetPin(t.csPin, true)
	if t.enablePin.Wired() {
		if err := gpio.ConfigureOutput(t.enablePin); err != nil {
			return err
		}
		gpio.SetPin(t.enablePin, true)
	}

	// clear reset and error flags
	if _, err := t.readReg(regGSTAT); err != nil {
		return err
	}
	if t.model == ModelTMC5160 {
		if err := t.writeReg(regGLOBALSCALER, 0); err != nil {
			return err
		}
	}
	if err := t.writeReg(regTPOWERDOWN, 10); err != nil {
		return err
	}
	if err := t.writeReg(regGCONF, t.gconf); err != nil {
		return err
	}
	return t.writeReg(regCHOPCONF, t.chopconf)
}

func (t *TMC) Name() string {
	return t.model.String()
}

func (t *TMC) transfer() error {
	gpio := core.MustGPIO()
	gpio.SetPin(t.csPin, false)
	err := t.bus.Tx(t.buf[:], t.rx[:])
	gpio.SetPin(t.csPin, true)
	t.lastSPI = t.rx[0]
	return err
}

func (t *TMC) writeReg(addr uint8, value uint32) error {
	t.buf[0] = addr | writeFlag
	t.buf[1] = byte(value >> 24)
	t.buf[2] = byte(value >> 16)
	t.buf[3] = byte(value >> 8)
	t.buf[4] = byte(value)
	if err := t.transfer(); err != nil {
		return fmt.Errorf("tmc: write 0x%02x: %w", addr, err)
	}
	return nil
}

// readReg reads a register. The chip answers a read request on the next
// datagram, so the address is sent twice.
func (t *TMC) readReg(addr uint8) (uint32, error) {
	for i := 0; i < 2; i++ {
		t.buf = [5]byte{addr}
		if err := t.transfer(); err != nil {
			return 0, fmt.Errorf("tmc: read 0x%02x: %w", addr, err)
		}
	}
	return uint32(t.rx[1])<<24 | uint32(t.rx[2])<<16 | uint32(t.rx[3])<<8 | uint32(t.rx[4]), nil
}

// mres encodes microsteps per full step as the CHOPCONF MRES field
func mres(microsteps int) (uint32, error) {
	for m := uint32(0); m <= 8; m++ {
		if 256>>m == microsteps {
			return m, nil
		}
	}
	return 0, ErrMicrosteps
}

func (t *TMC) SetMicrosteps(microsteps int) error {
	m, err := mres(microsteps)
	if err != nil {
		return err
	}
	t.chopconf = t.chopconf&^chopconfMRESMask | m<<chopconfMRESShift
	return t.writeReg(regCHOPCONF, t.chopconf)
}

// currentScale converts an RMS current in mA to the 5-bit CS value
func (t *TMC) currentScale(mA int) uint32 {
	vfs := 0.325
	r := t.rsense
	if t.model == ModelTMC2130 {
		r += 0.02
	}
	cs := math.Round(32*math.Sqrt2*float64(mA)/1000*r/vfs) - 1
	if cs < 0 {
		cs = 0
	}
	if cs > 31 {
		cs = 31
	}
	return uint32(cs)
}

func (t *TMC) SetCurrent(runMA, holdMA int) error {
	if runMA <= 0 {
		return fmt.Errorf("tmc: run current %d mA: %w", runMA, ErrUnsupported)
	}
	if holdMA <= 0 || holdMA > runMA {
		holdMA = runMA / 2
	}
	v := t.currentScale(holdMA)<<iholdShift | t.currentScale(runMA)<<irunShift | 6<<iholdDelayShift
	return t.writeReg(regIHOLD_IRUN, v)
}

func (t *TMC) SetDecayMode(mode Decay) error {
	switch mode {
	case DecayStealthChop:
		t.gconf |= gconfEnPWMMode
	case DecaySpreadCycle:
		t.gconf &^= gconfEnPWMMode
	default:
		return ErrUnsupported
	}
	return t.writeReg(regGCONF, t.gconf)
}

func (t *TMC) Enable(on bool) error {
	if t.enablePin.Wired() {
		if err := core.MustGPIO().SetPin(t.enablePin, !on); err != nil {
			return err
		}
	}
	t.enabled = on
	return nil
}

func (t *TMC) Status() Status {
	s := Status{Enabled: t.enabled}
	v, err := t.readReg(regDRV_STATUS)
	if err != nil {
		s.Fault = true
		return s
	}
	s.OverTemp = v&drvStatusOT != 0
	s.OverTempPre = v&drvStatusOTPW != 0
	s.ShortA = v&drvStatusS2GA != 0
	s.ShortB = v&drvStatusS2GB != 0
	if t.model == ModelTMC5160 {
		s.ShortA = s.ShortA || v&drvStatusS2VSA != 0
		s.ShortB = s.ShortB || v&drvStatusS2VSB != 0
	}
	s.OpenLoadA = v&drvStatusOLA != 0
	s.OpenLoadB = v&drvStatusOLB != 0
	s.Standstill = v&drvStatusSTST != 0
	s.Fault = s.OverTemp || s.ShortA || s.ShortB
	return s
}

func (t *TMC) Fault() bool {
	return t.Status().Fault
}
