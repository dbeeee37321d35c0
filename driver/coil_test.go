package driver

import (
	"testing"

	"gomount/core"
)

func coilLevels(gpio *mockGPIO, pins [4]core.GPIOPin) uint8 {
	var v uint8
	for i, pin := range pins {
		if gpio.pins[pin] {
			v |= 1 << i
		}
	}
	return v
}

func TestCoilHalfSteps(t *testing.T) {
	gpio := newMockGPIO()
	pins := [4]core.GPIOPin{20, 21, 22, 23}
	c := NewCoil(pins)
	if err := c.Init(core.PinNone, core.PinNone, false, false); err != nil {
		t.Fatal(err)
	}
	c.Enable(true)
	if got := coilLevels(gpio, pins); got != halfStepSequence[0] {
		t.Errorf("enable should energize the first entry, got %04b", got)
	}

	for i := 1; i <= 8; i++ {
		c.SetStep(true)
		c.SetStep(false)
		want := halfStepSequence[i%8]
		if got := coilLevels(gpio, pins); got != want {
			t.Errorf("step %d: expected %04b, got %04b", i, want, got)
		}
	}

	c.SetDirection(true)
	c.SetStep(true)
	if c.Phase() != 7 {
		t.Errorf("reverse from 0 should wrap to 7, got %d", c.Phase())
	}
}

func TestCoilFullSteps(t *testing.T) {
	newMockGPIO()
	c := NewCoil([4]core.GPIOPin{20, 21, 22, 23})
	c.Init(core.PinNone, core.PinNone, false, false)
	if err := c.SetMicrosteps(1); err != nil {
		t.Fatal(err)
	}
	c.SetStep(true)
	if c.Phase() != 2 {
		t.Errorf("full step should skip an entry, got phase %d", c.Phase())
	}
	if err := c.SetMicrosteps(4); err == nil {
		t.Error("coil sequencer has no quarter steps")
	}
}

func TestCoilDisableReleases(t *testing.T) {
	gpio := newMockGPIO()
	pins := [4]core.GPIOPin{20, 21, 22, 23}
	c := NewCoil(pins)
	c.Init(core.PinNone, core.PinNone, false, false)
	c.Enable(true)
	c.SetStep(true)
	c.Enable(false)
	if got := coilLevels(gpio, pins); got != 0 {
		t.Errorf("disabled coils should be off, got %04b", got)
	}
	if c.Fault() || c.Status().Enabled {
		t.Error("unexpected status after disable")
	}
}
