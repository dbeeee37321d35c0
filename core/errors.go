package core

// CommandError is the result code of a mount command. It fits the one-byte
// status field of the telemetry frame.
type CommandError uint8

const (
	CeNone CommandError = iota
	CeParamRange
	CeNotReady
	CeSlewErrInStandby
	CeSlewErrHardwareFault
	CeSlewErrOutsideLimits
	CeSlewErrBelowHorizon
	CeSlewErrAboveOverhead
	CeSlewInProgress
)

var commandErrorNames = [...]string{
	CeNone:                 "none",
	CeParamRange:           "parameter out of range",
	CeNotReady:             "not ready",
	CeSlewErrInStandby:     "slew rejected: standby",
	CeSlewErrHardwareFault: "slew rejected: hardware fault",
	CeSlewErrOutsideLimits: "slew rejected: outside limits",
	CeSlewErrBelowHorizon:  "slew rejected: below horizon",
	CeSlewErrAboveOverhead: "slew rejected: above overhead limit",
	CeSlewInProgress:       "slew in progress",
}

func (e CommandError) String() string {
	if int(e) < len(commandErrorNames) {
		return commandErrorNames[e]
	}
	return "error " + Utoa(uint32(e))
}

// Error makes a CommandError usable as an error value
func (e CommandError) Error() string {
	return e.String()
}

// Err returns nil for CeNone and the code otherwise
func (e CommandError) Err() error {
	if e == CeNone {
		return nil
	}
	return e
}
