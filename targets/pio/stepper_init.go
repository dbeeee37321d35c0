//go:build rp2040

// Package pio provides the RP2040 step backends: PIO state machines with
// hardware pulse timing, and single-cycle IO as a fallback.
package pio

import (
	"errors"

	"gomount/core"
)

var (
	errClaimed    = errors.New("pio state machine already claimed")
	errInvertStep = errors.New("pio backend has an active-high step")
)

var (
	// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// NewStepper returns the step backend of a mount axis: a PIO state machine
// while any is free, SIO otherwise. It has the signature of
// mount.Hardware.NewStepper.
func NewStepper(index uint8) core.StepperBackend {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		core.DebugPrintln("[PIO] no state machine for axis " + core.Utoa(uint32(index)+1))
		return NewSIOStepperBackend()
	}
	return &fallbackStepper{
		StepperBackend: NewPIOStepperBackend(pioNum, smNum),
	}
}

// fallbackStepper switches to SIO when the state machine refuses the pins
type fallbackStepper struct {
	core.StepperBackend
}

func (f *fallbackStepper) Init(stepPin, dirPin core.GPIOPin, invertStep, invertDir bool) error {
	err := f.StepperBackend.Init(stepPin, dirPin, invertStep, invertDir)
	if err == nil {
		return nil
	}
	core.DebugPrintln("[PIO] " + err.Error() + ", using sio")
	f.StepperBackend = NewSIOStepperBackend()
	return f.StepperBackend.Init(stepPin, dirPin, invertStep, invertDir)
}

// allocatePIO allocates a PIO state machine
// Returns (pioNum, smNum, ok)
func allocatePIO() (uint8, uint8, bool) {
	// Round-robin allocation across PIO blocks and state machines
	for i := 0; i < 8; i++ { // 2 PIO × 4 SM = 8 total
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}

	return 0, 0, false
}

// GetPIOAllocationStatus returns PIO allocation status for debugging
func GetPIOAllocationStatus() [2][4]bool {
	return pioAllocations
}
