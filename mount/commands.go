package mount

import (
	"errors"

	"gomount/astro"
	"gomount/core"
	"gomount/protocol"
)

// ErrUnknownCommand is returned for a command id the mount does not handle
var ErrUnknownCommand = errors.New("unknown command")

// AttachTransport creates the command link writing to output
func (m *Manager) AttachTransport(output protocol.OutputBuffer) *protocol.Transport {
	m.transport = protocol.NewTransport(output, m.HandleCommand)
	m.transport.SetErrorCallback(func(cmdID uint16, err error) {
		core.DebugPrintln("[MOUNT] " + protocol.CommandName(cmdID) + ": " + err.Error())
	})
	return m.transport
}

// Transport returns the attached command link, if any
func (m *Manager) Transport() *protocol.Transport {
	return m.transport
}

// HandleCommand runs one command and reports its result code. It is the
// protocol.CommandHandler of the attached transport.
func (m *Manager) HandleCommand(cmdID uint16, data *[]byte) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	var result core.CommandError
	switch cmdID {
	case protocol.CmdQuery:
		tel := m.Telemetry()
		return m.send(func(t *protocol.Transport) error { return t.SendTelemetry(&tel) })

	case protocol.CmdGoto, protocol.CmdSync:
		ra, dec, err := protocol.DecodeTarget(data)
		if err != nil {
			return err
		}
		target := astro.Coordinate{R: astro.NormalizeRad(ra), D: dec}
		if cmdID == protocol.CmdGoto {
			result = m.telescope.GotoEqu(target)
		} else {
			result = m.telescope.SyncEqu(target)
		}

	case protocol.CmdAbort:
		m.telescope.Abort()

	case protocol.CmdTracking:
		on, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		result = m.telescope.SetTracking(on != 0)

	case protocol.CmdHome:
		m.telescope.SetAtHome()

	case protocol.CmdEnable:
		on, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if err := m.telescope.Enable(on != 0); err != nil {
			result = core.CeSlewErrHardwareFault
		}

	default:
		return ErrUnknownCommand
	}

	return m.send(func(t *protocol.Transport) error { return t.SendResult(cmdID, uint8(result)) })
}

func (m *Manager) send(fn func(t *protocol.Transport) error) error {
	if m.transport == nil {
		return nil
	}
	return fn(m.transport)
}

// Telemetry returns a status snapshot for the host
func (m *Manager) Telemetry() protocol.Telemetry {
	pos := m.telescope.Position()
	st := m.telescope.Status()

	var flags uint8
	set := func(on bool, flag uint8) {
		if on {
			flags |= flag
		}
	}
	set(st.Tracking, protocol.FlagTracking)
	set(st.Slewing, protocol.FlagSlewing)
	set(st.AtHome, protocol.FlagAtHome)
	set(st.SafetyLimitsOn, protocol.FlagSafetyLimits)
	set(st.SyncToEncodersOnly, protocol.FlagSyncToEncoders)
	set(st.Fault, protocol.FlagFault)

	return protocol.Telemetry{
		Clock:      core.GetTime(),
		LAST:       m.clock.Centiseconds(),
		RA:         pos.R,
		Dec:        pos.D,
		HA:         pos.H,
		Alt:        pos.A,
		Az:         pos.Z,
		PierSide:   uint8(st.PierSide),
		Flags:      flags,
		LastError:  uint8(st.LastError),
		Axis1Steps: int32(m.axes[0].MotorCoordinateSteps()),
		Axis2Steps: int32(m.axes[1].MotorCoordinateSteps()),
		Axis1Rate:  m.axes[0].Frequency(),
		Axis2Rate:  m.axes[1].Frequency(),
	}
}

// SendTelemetry publishes a status snapshot on the attached transport
func (m *Manager) SendTelemetry() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	tel := m.Telemetry()
	return m.send(func(t *protocol.Transport) error { return t.SendTelemetry(&tel) })
}
