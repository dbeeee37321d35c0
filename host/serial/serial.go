// Package serial opens the link between the host tools and a mount
// controller.
package serial

import (
	"io"
)

// Port represents a serial port interface. Native ports come from
// tarm/serial; tests and the simulator use pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string `koanf:"device" yaml:"device"`

	// Baud rate; USB CDC ignores it
	Baud int `koanf:"baud" yaml:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `koanf:"read_timeout_ms" yaml:"read_timeout_ms"`

	// OpenTimeout bounds the retries of OpenRetry, in milliseconds
	OpenTimeout int `koanf:"open_timeout_ms" yaml:"open_timeout_ms"`
}

// DefaultConfig returns the configuration of a mount controller on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
		OpenTimeout: 5000,
	}
}
