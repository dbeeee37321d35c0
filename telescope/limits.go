package telescope

import (
	"gomount/astro"
	"gomount/core"
)

// MeridianFlip is the policy for changing pier side
type MeridianFlip uint8

const (
	FlipNever MeridianFlip = iota
	FlipAlways
)

func (m MeridianFlip) String() string {
	if m == FlipAlways {
		return "always"
	}
	return "never"
}

// Limits are the mount-wide safety bounds, in radians
type Limits struct {
	Horizon       float64 // lowest altitude
	Overhead      float64 // highest altitude
	PastMeridianE float64 // hour angle an east-side tube may track past the meridian
	PastMeridianW float64 // hour angle a west-side tube may sit before the meridian
}

// DefaultLimits allows the whole sky above -10° and 15° past the meridian
func DefaultLimits() Limits {
	return Limits{
		Horizon:       astro.DegToRad(-10),
		Overhead:      astro.DegToRad(90),
		PastMeridianE: astro.DegToRad(15),
		PastMeridianW: astro.DegToRad(15),
	}
}

// validateGoto checks that both axes can move
func (t *Telescope) validateGoto() core.CommandError {
	if !t.axis1.Enabled() || !t.axis2.Enabled() {
		return core.CeSlewErrInStandby
	}
	if t.axis1.Fault() || t.axis2.Fault() {
		return core.CeSlewErrHardwareFault
	}
	return core.CeNone
}

// validateGotoCoords checks a mount-frame coordinate against the axis
// ranges and the altitude limits. It fills in the horizon pair.
func (t *Telescope) validateGotoCoords(c *astro.Coordinate) core.CommandError {
	t.transform.EquToHor(c)

	if t.transform.MountType.IsEquatorial() {
		if !t.axis1.WithinLimits(c.H) {
			return core.CeSlewErrOutsideLimits
		}
		if !t.opts.Axis2Continuous && !t.axis2.WithinLimits(c.D) {
			return core.CeSlewErrOutsideLimits
		}
	} else if !t.axis1.WithinLimits(astro.NormalizeRadPM(c.Z)) {
		return core.CeSlewErrOutsideLimits
	}

	if c.A < t.limits.Horizon {
		return core.CeSlewErrBelowHorizon
	}
	if c.A > t.limits.Overhead {
		return core.CeSlewErrAboveOverhead
	}
	return core.CeNone
}

// pierSide decides the side for a target at hour angle h. A flip that is
// needed but not allowed is an error.
func (t *Telescope) pierSide(h float64, allowFlip bool) (astro.PierSide, core.CommandError) {
	switch {
	case t.transform.MountType == astro.MountAltAz:
		return astro.PierSideNone, core.CeNone
	case t.transform.MountType == astro.MountFork || t.opts.MeridianFlip == FlipNever:
		return astro.PierSideEast, core.CeNone
	}

	current := t.position.PierSide
	if t.atHome || current == astro.PierSideNone {
		if h > 0 {
			return astro.PierSideWest, core.CeNone
		}
		return astro.PierSideEast, core.CeNone
	}

	want := current
	if current == astro.PierSideEast && h > t.limits.PastMeridianE {
		want = astro.PierSideWest
	}
	if current == astro.PierSideWest && h < -t.limits.PastMeridianW {
		want = astro.PierSideEast
	}
	if want != current && !allowFlip {
		return current, core.CeSlewErrOutsideLimits
	}
	return want, core.CeNone
}

// ValidateGoto reports whether the axes are ready to move
func (t *Telescope) ValidateGoto() core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validateGoto()
}

// ValidateGotoCoords checks a mount-frame coordinate against the axis ranges
// and the altitude limits, filling in its altitude and azimuth.
func (t *Telescope) ValidateGotoCoords(c *astro.Coordinate) core.CommandError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validateGotoCoords(c)
}
