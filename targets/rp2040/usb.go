//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures the USB CDC-ACM port. On RP2040 machine.Serial is
// USB, not a UART.
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
