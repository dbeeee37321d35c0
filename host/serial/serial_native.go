//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// ErrNilConfig is returned when no configuration is given
var ErrNilConfig = errors.New("config cannot be nil")

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// OpenRetry opens the port, retrying with exponential backoff while the
// device is absent, e.g. while a controller re-enumerates after reset.
func OpenRetry(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	return openRetry(func() (Port, error) { return Open(cfg) }, newBackOff(cfg))
}

func newBackOff(cfg *Config) backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      time.Duration(cfg.OpenTimeout) * time.Millisecond,
		Clock:               backoff.SystemClock}
}

func openRetry(open func() (Port, error), b backoff.BackOff) (Port, error) {
	var port Port
	op := func() error {
		p, err := open()
		if err != nil {
			return err
		}
		port = p
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return port, nil
}

// Read reads data from the serial port. A read timeout with no data comes
// back from the driver as io.EOF; it is reported as an empty read so the
// link stays up.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == io.EOF && p.cfg.ReadTimeout > 0 {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush is a no-op; Write returns once the data is handed to the driver
func (p *NativePort) Flush() error {
	return nil
}
