package astro

import "math"

// Latitude caches the trigonometry of the site latitude
type Latitude struct {
	Value  float64
	Sine   float64
	Cosine float64
	AbsVal float64
	Sign   float64
}

// NewLatitude builds the cache for a latitude in radians
func NewLatitude(value float64) Latitude {
	sign := 1.0
	if value < 0 {
		sign = -1.0
	}
	return Latitude{
		Value:  value,
		Sine:   math.Sin(value),
		Cosine: math.Cos(value),
		AbsVal: math.Abs(value),
		Sign:   sign,
	}
}

// Site is the observer location. Longitude is positive west.
type Site struct {
	Longitude float64
	Latitude  Latitude
}

// NewSite creates a site from latitude and longitude in radians
func NewSite(latitude, longitude float64) Site {
	return Site{Longitude: longitude, Latitude: NewLatitude(latitude)}
}

// SetLatitude replaces the latitude together with its trig cache
func (s *Site) SetLatitude(value float64) {
	s.Latitude = NewLatitude(value)
}
