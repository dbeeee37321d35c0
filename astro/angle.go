// Package astro holds the astrometric math of the mount: angle
// normalization, sidereal time, the frame chain between instrument and sky,
// and atmospheric refraction.
package astro

import "math"

const (
	Deg90  = math.Pi / 2
	Deg180 = math.Pi
	Deg360 = 2 * math.Pi

	// SiderealRatio is the length of a solar day in sidereal days
	SiderealRatio = 1.00273790935

	// SiderealRate is the apparent rotation of the sky in radians per second
	SiderealRate = Deg360 / 86400.0 * SiderealRatio
)

// NormalizeRad wraps a into [0, 2π) by repeated addition or subtraction
func NormalizeRad(a float64) float64 {
	if math.IsInf(a, 0) {
		return math.NaN()
	}
	for a >= Deg360 {
		a -= Deg360
	}
	for a < 0 {
		a += Deg360
	}
	// a tiny negative angle can round up to exactly 2π
	if a >= Deg360 {
		a = 0
	}
	return a
}

// NormalizeRadPM wraps a into [-π, π)
func NormalizeRadPM(a float64) float64 {
	if math.IsInf(a, 0) {
		return math.NaN()
	}
	for a >= Deg180 {
		a -= Deg360
	}
	for a < -Deg180 {
		a += Deg360
	}
	if a >= Deg180 {
		a = -Deg180
	}
	return a
}

// NormalizeHours wraps h into [0, 24)
func NormalizeHours(h float64) float64 {
	if math.IsInf(h, 0) {
		return math.NaN()
	}
	for h >= 24 {
		h -= 24
	}
	for h < 0 {
		h += 24
	}
	if h >= 24 {
		h = 0
	}
	return h
}

func DegToRad(d float64) float64 { return d * math.Pi / 180 }
func RadToDeg(r float64) float64 { return r * 180 / math.Pi }
func HrsToRad(h float64) float64 { return h * math.Pi / 12 }
func RadToHrs(r float64) float64 { return r * 12 / math.Pi }

// ArcsecToRad converts arc-seconds to radians
func ArcsecToRad(s float64) float64 { return DegToRad(s / 3600) }
