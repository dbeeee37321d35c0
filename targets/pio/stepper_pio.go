//go:build rp2040

package pio

// PIO step backend using tinygo-org/pio. The axis decides when to step;
// each SetStep(true) queues one command word and the state machine emits
// the pulse with hardware timing, so the periodic callback never waits on
// the pulse width.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"gomount/core"
)

// Command word, shifted out LSB first:
//
//	Bits 0-15:  extra pulses after the first
//	Bits 16-23: delay loops between pulses
//	Bit 24:     direction (1 = reverse)
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),            // 1: out x, 16
		asm.Out(rp2pio.OutDestY, 8).Encode(),             // 2: out y, 8
		asm.Out(rp2pio.OutDestPins, 1).Delay(1).Encode(), // 3: out pins, 1 [1] (dir setup)
		// step_loop:
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 4: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 5: set pins, 0
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

const (
	stepperPIOOrigin = 0 // jump targets above are absolute

	// 125 MHz / 25 = 5 MHz, an 8 cycle pulse is 1.6 us
	stepperClkDiv = 25

	dirBit = 1 << 24
)

// the program is shared by the state machines of a block
var programLoaded [2]bool

// PIOStepperBackend implements core.StepperBackend on one PIO state machine
type PIOStepperBackend struct {
	pio       *rp2pio.PIO
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	invertDir bool
	reverse   bool
	pioNum    uint8
	smNum     uint8
}

// NewPIOStepperBackend creates a backend on pioNum (0 or 1), state machine
// smNum (0-3)
func NewPIOStepperBackend(pioNum, smNum uint8) *PIOStepperBackend {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	return &PIOStepperBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init claims the state machine and hands both pins to it. A high step
// level is always active on this backend, so invertStep is not supported.
func (b *PIOStepperBackend) Init(stepPin, dirPin core.GPIOPin, invertStep, invertDir bool) error {
	if invertStep {
		return errInvertStep
	}
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)
	b.invertDir = invertDir

	if !b.sm.TryClaim() {
		return errClaimed
	}

	program := buildStepperProgram()
	offset := uint8(stepperPIOOrigin)
	if !programLoaded[b.pioNum] {
		var err error
		offset, err = b.pio.AddProgram(program, stepperPIOOrigin)
		if err != nil {
			return err
		}
		programLoaded[b.pioNum] = true
	}

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// shift right, explicit pull
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(stepperClkDiv, 0)

	// pin directions must follow Init
	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, invertDir)

	b.sm.SetEnabled(true)
	return nil
}

// SetStep queues one pulse on the rising call. The state machine ends the
// pulse itself, so the falling call is a no-op.
func (b *PIOStepperBackend) SetStep(active bool) {
	if !active {
		return
	}
	var cmd uint32
	if b.reverse != b.invertDir {
		cmd |= dirBit
	}
	// the FIFO holds four words; a full FIFO means the step rate is beyond
	// what the program can emit and the pulse would be late anyway
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(cmd)
}

// SetDirection applies to the pulses queued after it
func (b *PIOStepperBackend) SetDirection(reverse bool) {
	b.reverse = reverse
}

// Stop drops queued pulses
func (b *PIOStepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetEnabled(true)
}

func (b *PIOStepperBackend) GetName() string {
	return "pio" + core.Utoa(uint32(b.pioNum)) + "-sm" + core.Utoa(uint32(b.smNum))
}
