package protocol

// Status flags
const (
	FlagTracking = 1 << iota
	FlagSlewing
	FlagAtHome
	FlagSafetyLimits
	FlagSyncToEncoders
	FlagFault
)

// Telemetry is the status snapshot the mount publishes
type Telemetry struct {
	Clock     uint32 // mount timer ticks
	LAST      uint32 // centiseconds of sidereal day
	RA        float64
	Dec       float64
	HA        float64
	Alt       float64
	Az        float64
	PierSide  uint8
	Flags     uint8
	LastError uint8

	Axis1Steps int32
	Axis2Steps int32
	Axis1Rate  float64 // radians per second
	Axis2Rate  float64
}

// Has reports whether all the given flags are set
func (t *Telemetry) Has(flags uint8) bool {
	return t.Flags&flags == flags
}

// EncodeTelemetry writes a MsgStatus payload without the message id
func EncodeTelemetry(output OutputBuffer, t *Telemetry) {
	EncodeVLQUint(output, t.Clock)
	EncodeVLQUint(output, t.LAST)
	EncodeAngle(output, t.RA)
	EncodeAngle(output, t.Dec)
	EncodeAngle(output, t.HA)
	EncodeAngle(output, t.Alt)
	EncodeAngle(output, t.Az)
	EncodeVLQUint(output, uint32(t.PierSide))
	EncodeVLQUint(output, uint32(t.Flags))
	EncodeVLQUint(output, uint32(t.LastError))
	EncodeVLQInt(output, t.Axis1Steps)
	EncodeVLQInt(output, t.Axis2Steps)
	EncodeAngle(output, t.Axis1Rate)
	EncodeAngle(output, t.Axis2Rate)
}

// DecodeTelemetry reads a MsgStatus payload
func DecodeTelemetry(data *[]byte) (Telemetry, error) {
	var t Telemetry
	var err error
	var u uint32

	if t.Clock, err = DecodeVLQUint(data); err != nil {
		return t, err
	}
	if t.LAST, err = DecodeVLQUint(data); err != nil {
		return t, err
	}
	for _, p := range []*float64{&t.RA, &t.Dec, &t.HA, &t.Alt, &t.Az} {
		if *p, err = DecodeAngle(data); err != nil {
			return t, err
		}
	}
	for _, p := range []*uint8{&t.PierSide, &t.Flags, &t.LastError} {
		if u, err = DecodeVLQUint(data); err != nil {
			return t, err
		}
		*p = uint8(u)
	}
	if t.Axis1Steps, err = DecodeVLQInt(data); err != nil {
		return t, err
	}
	if t.Axis2Steps, err = DecodeVLQInt(data); err != nil {
		return t, err
	}
	if t.Axis1Rate, err = DecodeAngle(data); err != nil {
		return t, err
	}
	t.Axis2Rate, err = DecodeAngle(data)
	return t, err
}

// EncodeTarget writes the ra, dec arguments of CmdGoto and CmdSync
func EncodeTarget(output OutputBuffer, ra, dec float64) {
	EncodeAngle(output, ra)
	EncodeAngle(output, dec)
}

// DecodeTarget reads the ra, dec arguments of CmdGoto and CmdSync
func DecodeTarget(data *[]byte) (ra, dec float64, err error) {
	if ra, err = DecodeAngle(data); err != nil {
		return
	}
	dec, err = DecodeAngle(data)
	return
}
