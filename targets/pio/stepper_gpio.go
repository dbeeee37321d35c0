//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"

	"gomount/core"
)

// SIOStepperBackend drives step/dir through single-cycle IO. It is the
// fallback once the state machines are taken.
type SIOStepperBackend struct {
	stepMask  uint32
	dirMask   uint32
	invertStp bool
	invertDir bool
}

// NewSIOStepperBackend creates an uninitialised SIO backend
func NewSIOStepperBackend() *SIOStepperBackend {
	return &SIOStepperBackend{}
}

func (b *SIOStepperBackend) Init(stepPin, dirPin core.GPIOPin, invertStep, invertDir bool) error {
	step, dir := machine.Pin(stepPin), machine.Pin(dirPin)
	step.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dir.Configure(machine.PinConfig{Mode: machine.PinOutput})

	b.stepMask = 1 << uint32(stepPin)
	b.dirMask = 1 << uint32(dirPin)
	b.invertStp = invertStep
	b.invertDir = invertDir

	b.write(b.stepMask, invertStep)
	b.write(b.dirMask, invertDir)
	return nil
}

func (b *SIOStepperBackend) write(mask uint32, high bool) {
	if high {
		rp.SIO.GPIO_OUT_SET.Set(mask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(mask)
	}
}

func (b *SIOStepperBackend) SetStep(active bool) {
	b.write(b.stepMask, active != b.invertStp)
}

// SetDirection holds the 20 ns dir-to-step setup of TMC and DRV parts
func (b *SIOStepperBackend) SetDirection(reverse bool) {
	b.write(b.dirMask, reverse != b.invertDir)
	// 3 NOPs = ~24ns @ 125MHz
	arm.Asm("nop\nnop\nnop")
}

func (b *SIOStepperBackend) Stop() {
	b.write(b.stepMask, b.invertStp)
}

func (b *SIOStepperBackend) GetName() string {
	return "sio"
}
