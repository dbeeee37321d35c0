package astro

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"
)

// J2000 is the Julian Day of the J2000.0 epoch
const J2000 = 2451545.0

// JulianDay0 returns the Julian Day at 0h UT of a calendar date
func JulianDay0(year, month, day int) float64 {
	return satellite.JDay(year, month, day, 0, 0, 0)
}

// GAST returns Greenwich Apparent Sidereal Time in hours for the date whose
// 0h UT Julian Day is jd0, at hour UT1 hours into that day.
func GAST(jd0, hour float64) float64 {
	d0 := jd0 - J2000
	d := d0 + hour/24
	t := d / 36525

	gmst := 6.697374558 + 0.06570982441908*d0 + SiderealRatio*hour + 0.000026*t*t

	omega := DegToRad(125.04 - 0.052954*d)
	l := DegToRad(280.47 + 0.98565*d)
	epsilon := DegToRad(23.4393 - 0.0000004*d)
	eqeq := (-0.000319*math.Sin(omega) - 0.000024*math.Sin(2*l)) * math.Cos(epsilon)

	return NormalizeHours(gmst + eqeq)
}

// LAST returns Local Apparent Sidereal Time in hours for a longitude in
// radians, positive west.
func LAST(jd0, hour, longitude float64) float64 {
	return NormalizeHours(GAST(jd0, hour) - RadToHrs(longitude))
}
