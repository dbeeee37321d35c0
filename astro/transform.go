package astro

import "math"

// MountType selects the geometry between the instrument axes and the sky
type MountType uint8

const (
	MountGEM MountType = iota // German equatorial
	MountFork
	MountAltAz
)

func (m MountType) String() string {
	switch m {
	case MountFork:
		return "fork"
	case MountAltAz:
		return "altaz"
	}
	return "gem"
}

// IsEquatorial reports whether the primary axis follows hour angle
func (m MountType) IsEquatorial() bool {
	return m != MountAltAz
}

// Observer supplies the site and the current Local Apparent Sidereal Time
// in hours.
type Observer interface {
	Site() Site
	LAST() float64
}

// PointingModel maps between the mount frame and the observed place.
// Implementations modify the coordinate in place.
type PointingModel interface {
	MountToObserved(c *Coordinate)
	ObservedToMount(c *Coordinate)
}

// IdentityModel is the default pointing model: no correction at all.
type IdentityModel struct{}

func (IdentityModel) MountToObserved(c *Coordinate) {}
func (IdentityModel) ObservedToMount(c *Coordinate) {}

// Refraction configures the observed <-> topocentric step
type Refraction struct {
	Enabled     bool
	Pressure    float64 // mb
	Temperature float64 // degrees C

	// PoleThreshold is the distance from a celestial pole inside which the
	// horizon round trip is not used to correct the hour angle.
	PoleThreshold float64

	// Strict corrects declination near the pole while keeping the hour
	// angle. Otherwise coordinates near the pole pass through unchanged.
	Strict bool
}

// DefaultRefraction is standard atmosphere with a one arc-minute pole cap
func DefaultRefraction() Refraction {
	return Refraction{
		Enabled:       true,
		Pressure:      StandardPressure,
		Temperature:   StandardTemperature,
		PoleThreshold: ArcsecToRad(60),
		Strict:        true,
	}
}

// Transform converts coordinates through the frame chain
// Instrument <-> Mount <-> Observed <-> Topocentric.
type Transform struct {
	MountType  MountType
	Refraction Refraction
	Model      PointingModel

	observer Observer
}

// NewTransform returns a transform with the identity pointing model
func NewTransform(mountType MountType, observer Observer) *Transform {
	return &Transform{
		MountType:  mountType,
		Refraction: DefaultRefraction(),
		Model:      IdentityModel{},
		observer:   observer,
	}
}

// Site returns the observer's site
func (t *Transform) Site() Site {
	return t.observer.Site()
}

// MountToPierSide classifies an instrument declination
func MountToPierSide(d float64) PierSide {
	if d < -Deg90 || d > Deg90 {
		return PierSideWest
	}
	return PierSideEast
}

// EquInstrumentToMount unwraps instrument axis angles into hour angle and
// declination. An instrument declination past the pole means the tube is
// on the west side.
func (t *Transform) EquInstrumentToMount(c *Coordinate) {
	c.PierSide = MountToPierSide(c.D)
	if c.PierSide == PierSideWest {
		c.H -= Deg180
		c.D = Deg180 - c.D
	}
	for c.D > Deg180 {
		c.D -= Deg360
	}
	for c.D < -Deg180 {
		c.D += Deg360
	}
	c.H = NormalizeRadPM(c.H)
}

// EquMountToInstrument wraps hour angle and declination into instrument
// axis angles for the coordinate's pier side.
func (t *Transform) EquMountToInstrument(c *Coordinate) {
	if c.PierSide == PierSideWest {
		c.H += Deg180
		if t.observer.Site().Latitude.Value >= 0 {
			c.D = Deg180 - c.D
		} else {
			c.D = -Deg180 - c.D
		}
	}
	for c.H > Deg360 {
		c.H -= Deg360
	}
	for c.H < -Deg360 {
		c.H += Deg360
	}
	for c.D > Deg360 {
		c.D -= Deg360
	}
	for c.D < -Deg360 {
		c.D += Deg360
	}
}

// EquToHor fills A and Z from H and D
func (t *Transform) EquToHor(c *Coordinate) {
	lat := t.observer.Site().Latitude
	cosHA := math.Cos(c.H)
	sinAlt := math.Sin(c.D)*lat.Sine + math.Cos(c.D)*lat.Cosine*cosHA
	c.A = math.Asin(clampUnit(sinAlt))

	t1 := math.Sin(c.H)
	t2 := cosHA*lat.Sine - math.Tan(c.D)*lat.Cosine
	c.Z = NormalizeRad(math.Atan2(t1, t2) + Deg180)
}

// HorToEqu fills H and D from A and Z. H is left in [0, 2π).
func (t *Transform) HorToEqu(c *Coordinate) {
	lat := t.observer.Site().Latitude
	cosAz := math.Cos(c.Z)
	sinDec := math.Sin(c.A)*lat.Sine + math.Cos(c.A)*lat.Cosine*cosAz
	c.D = math.Asin(clampUnit(sinDec))

	t1 := math.Sin(c.Z)
	t2 := cosAz*lat.Sine - math.Tan(c.A)*lat.Cosine
	c.H = NormalizeRad(math.Atan2(t1, t2) + Deg180)
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// TopocentricToObservedPlace lifts the altitude by atmospheric refraction
func (t *Transform) TopocentricToObservedPlace(c *Coordinate) {
	t.refract(c, 1)
}

// ObservedPlaceToTopocentric removes the atmospheric refraction
func (t *Transform) ObservedPlaceToTopocentric(c *Coordinate) {
	t.refract(c, -1)
}

func (t *Transform) refract(c *Coordinate, sign float64) {
	r := t.Refraction
	if !r.Enabled {
		return
	}
	nearPole := math.Abs(c.D) > Deg90-r.PoleThreshold
	if nearPole && !r.Strict {
		return
	}

	h := c.H
	t.EquToHor(c)
	if sign > 0 {
		c.A += TrueRefrac(c.A, r.Pressure, r.Temperature)
	} else {
		c.A -= ApparentRefrac(c.A, r.Pressure, r.Temperature)
	}
	t.HorToEqu(c)
	if nearPole {
		c.H = h
	}
	c.H = NormalizeRadPM(c.H)
}

// HourAngleToRightAscension sets R from H and the current sidereal time
func (t *Transform) HourAngleToRightAscension(c *Coordinate) {
	c.R = NormalizeRad(HrsToRad(t.observer.LAST()) - c.H)
}

// RightAscensionToHourAngle sets H from R and the current sidereal time
func (t *Transform) RightAscensionToHourAngle(c *Coordinate) {
	c.H = NormalizeRad(HrsToRad(t.observer.LAST()) - c.R)
}

// EquMountToObservedPlace applies the pointing model
func (t *Transform) EquMountToObservedPlace(c *Coordinate) {
	t.Model.MountToObserved(c)
}

// ObservedPlaceToEquMount removes the pointing model
func (t *Transform) ObservedPlaceToEquMount(c *Coordinate) {
	t.Model.ObservedToMount(c)
}

// InstrumentToMount builds a mount coordinate from the two axis instrument
// angles. Alt-az mounts read azimuth and altitude from the axes.
func (t *Transform) InstrumentToMount(a1, a2 float64) Coordinate {
	var c Coordinate
	if t.MountType.IsEquatorial() {
		c.H, c.D = a1, a2
		t.EquInstrumentToMount(&c)
		t.EquToHor(&c)
	} else {
		c.Z, c.A = a1, a2
		t.HorToEqu(&c)
		c.H = NormalizeRadPM(c.H)
		c.PierSide = PierSideNone
	}
	t.HourAngleToRightAscension(&c)
	return c
}

// MountToInstrument returns the two axis instrument angles for c
func (t *Transform) MountToInstrument(c Coordinate) (a1, a2 float64) {
	if t.MountType.IsEquatorial() {
		t.EquMountToInstrument(&c)
		return c.H, c.D
	}
	// azimuth axis travels ±180° about north
	t.EquToHor(&c)
	return NormalizeRadPM(c.Z), c.A
}

// TopocentricToMount converts a topocentric R/D into the mount frame,
// filling H and the horizon pair.
func (t *Transform) TopocentricToMount(c *Coordinate) {
	t.RightAscensionToHourAngle(c)
	c.H = NormalizeRadPM(c.H)
	t.TopocentricToObservedPlace(c)
	t.ObservedPlaceToEquMount(c)
	t.HourAngleToRightAscension(c)
	t.EquToHor(c)
}

// MountToTopocentric is the inverse of TopocentricToMount
func (t *Transform) MountToTopocentric(c *Coordinate) {
	t.EquMountToObservedPlace(c)
	t.ObservedPlaceToTopocentric(c)
	t.HourAngleToRightAscension(c)
	t.EquToHor(c)
}
