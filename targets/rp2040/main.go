//go:build rp2040

package main

import (
	_ "embed"
	"machine"
	"time"

	"gomount/core"
	"gomount/mount"
	"gomount/protocol"
	"gomount/targets/pio"
)

// mountConfig is the board configuration, applied over the defaults
//
//go:embed mount.json
var mountConfig []byte

// telemetryPeriod paces the unsolicited status frames, in microseconds
const telemetryPeriod = 250000

var (
	manager *mount.Manager

	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	msgerrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	UpdateSystemTime()

	manager, err = mount.NewManager(mountConfig)
	if err != nil {
		halt("config: " + err.Error())
	}
	hw := mount.Hardware{
		GPIO:       NewRPGPIODriver(),
		NewStepper: pio.NewStepper,
	}
	if needsSPI(manager.Config()) {
		bus, err := ConfigureSPI(manager.Config())
		if err != nil {
			halt("spi: " + err.Error())
		}
		hw.SPI = bus
	}
	if err := manager.Initialize(hw); err != nil {
		halt("init: " + err.Error())
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = manager.AttachTransport(outputBuffer)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// the ack must leave before the next command is read
	transport.SetFlushCallback(writeUSB)

	if err := manager.Start(); err != nil {
		halt("start: " + err.Error())
	}

	go usbReaderLoop()

	lastTelemetry := GetHardwareUptime()
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}

			core.ProcessTimers()
			manager.Poll()

			if now := GetHardwareUptime(); now-lastTelemetry >= telemetryPeriod {
				lastTelemetry = now
				if transport.Synchronized() {
					manager.SendTelemetry()
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		// Yield to the USB reader
		time.Sleep(10 * time.Microsecond)
	}
}

// halt parks the firmware with the drivers unpowered, reporting why on the
// debug UART
func halt(reason string) {
	DebugPrintln("[MAIN] halted: " + reason)
	core.DumpTimingRing()
	if manager != nil {
		manager.Stop()
	}
	for {
		time.Sleep(time.Second)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// A host reconnecting starts from a clean link
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes the pending output. After repeated failures the host is
// considered gone and stale frames are dropped.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
