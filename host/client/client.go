// Package client is the host end of the mount link. It sends commands,
// collects their result codes and follows the telemetry stream.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gomount/core"
	"gomount/host/serial"
	"gomount/protocol"
)

var (
	ErrNotConnected = errors.New("not connected to mount")
	ErrConnected    = errors.New("already connected")
)

// DefaultResultTimeout bounds the wait for a command result after its ack
const DefaultResultTimeout = time.Second

type result struct {
	cmdID uint16
	code  core.CommandError
}

// Mount represents a connection to a mount controller
type Mount struct {
	transport *protocol.HostTransport

	// ResultTimeout bounds the wait for a result once the command is acked
	ResultTimeout time.Duration

	results   chan result
	telemetry chan protocol.Telemetry

	cmdMu sync.Mutex

	mu          sync.Mutex
	onTelemetry func(protocol.Telemetry)
	onResult    func(cmdID uint16, code core.CommandError)
	onError     func(err error)
	last        protocol.Telemetry
	lastSeen    time.Time
	connected   bool
}

// New creates a Mount instance (not yet connected)
func New() *Mount {
	return &Mount{
		ResultTimeout: DefaultResultTimeout,
		results:       make(chan result, 8),
		telemetry:     make(chan protocol.Telemetry, 1),
	}
}

// Connect opens a serial device with the default settings
func (m *Mount) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial device, retrying while it enumerates
func (m *Mount) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.OpenRetry(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := m.Attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// Dial connects to a simulator listening on a TCP address
func (m *Mount) Dial(ctx context.Context, address string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", address, err)
	}
	if err := m.Attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Attach runs the link over an already open port
func (m *Mount) Attach(port io.ReadWriteCloser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrConnected
	}
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
	m.connected = true
	return nil
}

// Close closes the link
func (m *Mount) Close() error {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.connected = false
	m.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Close()
}

// IsConnected returns whether the link is open
func (m *Mount) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnTelemetry sets a callback for every snapshot, run on the read goroutine
func (m *Mount) OnTelemetry(fn func(protocol.Telemetry)) {
	m.mu.Lock()
	m.onTelemetry = fn
	m.mu.Unlock()
}

// OnResult sets a callback for every command result, run on the read
// goroutine
func (m *Mount) OnResult(fn func(cmdID uint16, code core.CommandError)) {
	m.mu.Lock()
	m.onResult = fn
	m.mu.Unlock()
}

// OnError sets a callback for undecodable messages
func (m *Mount) OnError(fn func(err error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// handleResponse decodes results and telemetry (async callback)
func (m *Mount) handleResponse(msgID uint16, data *[]byte) error {
	switch msgID {
	case protocol.MsgResult:
		cmdID, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return m.fail(fmt.Errorf("result: %w", err))
		}
		code, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return m.fail(fmt.Errorf("result: %w", err))
		}
		r := result{cmdID: uint16(cmdID), code: core.CommandError(code)}

		m.mu.Lock()
		fn := m.onResult
		m.mu.Unlock()
		if fn != nil {
			fn(r.cmdID, r.code)
		}
		select {
		case m.results <- r:
		default:
		}

	case protocol.MsgStatus:
		tel, err := protocol.DecodeTelemetry(data)
		if err != nil {
			return m.fail(fmt.Errorf("status: %w", err))
		}

		m.mu.Lock()
		m.last = tel
		m.lastSeen = time.Now()
		fn := m.onTelemetry
		m.mu.Unlock()
		if fn != nil {
			fn(tel)
		}
		// keep only the newest snapshot
		select {
		case <-m.telemetry:
		default:
		}
		select {
		case m.telemetry <- tel:
		default:
		}
	}
	return nil
}

func (m *Mount) fail(err error) error {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
	return err
}

func (m *Mount) link() (*protocol.HostTransport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, ErrNotConnected
	}
	return m.transport, nil
}

// command sends one command and waits for its result code. The mount
// reports the result before it acknowledges the frame.
func (m *Mount) command(cmdID uint16, args func(output protocol.OutputBuffer)) (core.CommandError, error) {
	t, err := m.link()
	if err != nil {
		return core.CeNone, err
	}

	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	for len(m.results) > 0 {
		<-m.results
	}
	if err := t.SendCommand(cmdID, args); err != nil {
		return core.CeNone, fmt.Errorf("%s: %w", protocol.CommandName(cmdID), err)
	}

	timer := time.NewTimer(m.ResultTimeout)
	defer timer.Stop()
	for {
		select {
		case r := <-m.results:
			if r.cmdID == cmdID {
				return r.code, nil
			}
		case <-timer.C:
			return core.CeNone, fmt.Errorf("%s: no result after %v", protocol.CommandName(cmdID), m.ResultTimeout)
		}
	}
}

// Goto slews to a topocentric right ascension and declination in radians
func (m *Mount) Goto(ra, dec float64) (core.CommandError, error) {
	return m.command(protocol.CmdGoto, func(output protocol.OutputBuffer) {
		protocol.EncodeTarget(output, ra, dec)
	})
}

// Sync declares the mount to be pointing at ra, dec
func (m *Mount) Sync(ra, dec float64) (core.CommandError, error) {
	return m.command(protocol.CmdSync, func(output protocol.OutputBuffer) {
		protocol.EncodeTarget(output, ra, dec)
	})
}

// Abort stops any slew and tracking
func (m *Mount) Abort() (core.CommandError, error) {
	return m.command(protocol.CmdAbort, nil)
}

// SetTracking starts or stops sidereal tracking
func (m *Mount) SetTracking(on bool) (core.CommandError, error) {
	return m.command(protocol.CmdTracking, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(on))
	})
}

// Home declares the mount parked at its home position
func (m *Mount) Home() (core.CommandError, error) {
	return m.command(protocol.CmdHome, nil)
}

// Enable powers the axis drivers on or off
func (m *Mount) Enable(on bool) (core.CommandError, error) {
	return m.command(protocol.CmdEnable, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(on))
	})
}

// Query asks for a status snapshot and waits up to timeout for it
func (m *Mount) Query(timeout time.Duration) (protocol.Telemetry, error) {
	t, err := m.link()
	if err != nil {
		return protocol.Telemetry{}, err
	}

	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	select {
	case <-m.telemetry:
	default:
	}
	if err := t.SendCommand(protocol.CmdQuery, nil); err != nil {
		return protocol.Telemetry{}, fmt.Errorf("query: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case tel := <-m.telemetry:
		return tel, nil
	case <-timer.C:
		return protocol.Telemetry{}, fmt.Errorf("query: no status after %v", timeout)
	}
}

// Last returns the newest snapshot and when it arrived
func (m *Mount) Last() (protocol.Telemetry, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.lastSeen, !m.lastSeen.IsZero()
}

// LinkErrors returns the number of failed port reads
func (m *Mount) LinkErrors() uint32 {
	t, err := m.link()
	if err != nil {
		return 0
	}
	return t.ReadErrors()
}

func boolArg(on bool) uint32 {
	if on {
		return 1
	}
	return 0
}
