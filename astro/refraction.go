package astro

import "math"

// Standard atmosphere
const (
	StandardPressure    = 1010.0 // mb
	StandardTemperature = 10.0   // degrees C
)

// TrueRefrac returns the refraction in radians to add to a true altitude
// (radians) to get the apparent one. NaN pressure or temperature fall back
// to the standard atmosphere. The result is never negative.
func TrueRefrac(altitude, pressure, temperature float64) float64 {
	if math.IsNaN(pressure) {
		pressure = StandardPressure
	}
	if math.IsNaN(temperature) {
		temperature = StandardTemperature
	}
	if altitude >= Deg90 {
		return 0
	}

	tpc := (pressure / 1010.0) * (283.0 / (273.0 + temperature))
	r := 2.79924e-4 * cot(altitude+0.00232735/(altitude+0.0761479)) * tpc
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	return r
}

// ApparentRefrac approximates the refraction to remove from an apparent
// altitude by evaluating TrueRefrac at the already refracted altitude.
func ApparentRefrac(altitude, pressure, temperature float64) float64 {
	r := TrueRefrac(altitude, pressure, temperature)
	return TrueRefrac(altitude-r, pressure, temperature)
}

func cot(x float64) float64 {
	return 1 / math.Tan(x)
}
