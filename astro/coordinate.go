package astro

// PierSide is the side of the mount pivot the optical tube is on
type PierSide uint8

const (
	PierSideNone PierSide = iota
	PierSideEast
	PierSideWest
)

func (p PierSide) String() string {
	switch p {
	case PierSideEast:
		return "east"
	case PierSideWest:
		return "west"
	}
	return "none"
}

// Coordinate is a sky position in one of the frames. Equatorial fields are
// R (right ascension), H (hour angle) and D (declination); the horizon pair
// is A (altitude) and Z (azimuth). All in radians.
type Coordinate struct {
	R, H, D  float64
	A, Z     float64
	PierSide PierSide
}
