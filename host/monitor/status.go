package monitor

import (
	"time"

	"gomount/astro"
	"gomount/core"
	"gomount/protocol"
)

// Status is a telemetry snapshot in display units, for JSON and the console
type Status struct {
	RightAscension float64 `json:"ra_hours"`
	Declination    float64 `json:"dec_degrees"`
	HourAngle      float64 `json:"ha_hours"`
	Altitude       float64 `json:"alt_degrees"`
	Azimuth        float64 `json:"az_degrees"`
	SiderealTime   float64 `json:"last_hours"`
	PierSide       string  `json:"pier_side"`

	Tracking       bool `json:"tracking"`
	Slewing        bool `json:"slewing"`
	AtHome         bool `json:"at_home"`
	SafetyLimits   bool `json:"safety_limits"`
	SyncToEncoders bool `json:"sync_to_encoders"`
	Fault          bool `json:"fault"`

	LastError string       `json:"last_error"`
	Axes      [2]AxisState `json:"axes"`
	Updated   time.Time    `json:"updated"`
}

// AxisState is the motor side of one axis
type AxisState struct {
	Steps int32   `json:"steps"`
	Rate  float64 `json:"rate_degrees_per_second"`
}

// NewStatus converts a snapshot received at seen
func NewStatus(t protocol.Telemetry, seen time.Time) Status {
	return Status{
		RightAscension: astro.RadToHrs(t.RA),
		Declination:    astro.RadToDeg(t.Dec),
		HourAngle:      astro.RadToHrs(t.HA),
		Altitude:       astro.RadToDeg(t.Alt),
		Azimuth:        astro.RadToDeg(t.Az),
		SiderealTime:   float64(t.LAST) / 360000,
		PierSide:       astro.PierSide(t.PierSide).String(),
		Tracking:       t.Has(protocol.FlagTracking),
		Slewing:        t.Has(protocol.FlagSlewing),
		AtHome:         t.Has(protocol.FlagAtHome),
		SafetyLimits:   t.Has(protocol.FlagSafetyLimits),
		SyncToEncoders: t.Has(protocol.FlagSyncToEncoders),
		Fault:          t.Has(protocol.FlagFault),
		LastError:      core.CommandError(t.LastError).String(),
		Axes: [2]AxisState{
			{Steps: t.Axis1Steps, Rate: astro.RadToDeg(t.Axis1Rate)},
			{Steps: t.Axis2Steps, Rate: astro.RadToDeg(t.Axis2Rate)},
		},
		Updated: seen,
	}
}

// Status returns the newest snapshot in display units
func (c *Collector) Status() (Status, bool) {
	t, seen, ok := c.Last()
	if !ok {
		return Status{}, false
	}
	return NewStatus(t, seen), true
}
