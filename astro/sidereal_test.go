package astro

import (
	"math"
	"testing"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestJulianDay0(t *testing.T) {
	if jd := JulianDay0(2000, 1, 1); jd != 2451544.5 {
		t.Errorf("expected 2451544.5, got %v", jd)
	}
	if jd := JulianDay0(2020, 1, 20); jd != 2458868.5 {
		t.Errorf("expected 2458868.5, got %v", jd)
	}
}

func TestGASTAgainstMeanSiderealTime(t *testing.T) {
	jd0 := JulianDay0(2020, 1, 20)
	for _, hour := range []float64{0, 5.5, 17.18590278, 23.9} {
		gast := GAST(jd0, hour)
		gmst := RadToHrs(NormalizeRad(satellite.ThetaG_JD(jd0 + hour/24)))

		diff := gast - gmst
		for diff >= 12 {
			diff -= 24
		}
		for diff < -12 {
			diff += 24
		}
		// equation of the equinoxes stays within about 1.2 s
		if math.Abs(diff) > 0.001 {
			t.Errorf("hour %v: GAST %v differs from GMST %v by %v h", hour, gast, gmst, diff)
		}
	}
}

func TestLASTUsesWestLongitude(t *testing.T) {
	jd0 := JulianDay0(2020, 1, 20)
	gast := GAST(jd0, 3)
	last := LAST(jd0, 3, DegToRad(15))
	if math.Abs(NormalizeHours(gast-1)-last) > 1e-12 {
		t.Errorf("15° west should be one hour behind Greenwich: GAST %v LAST %v", gast, last)
	}
}
