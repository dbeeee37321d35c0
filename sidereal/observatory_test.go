package sidereal

import (
	"math"
	"testing"

	"gomount/astro"
	"gomount/core"
)

func newScenarioObservatory(t *testing.T) *Observatory {
	t.Helper()
	obs := NewObservatory(NewClock())
	site := astro.NewSite(astro.DegToRad(39), astro.DegToRad(-76))
	dt := DateTime{Year: 2020, Month: 1, Day: 20, Hour: 12, Minute: 11, Second: 9, Centisecond: 25, Timezone: 5}
	if e := obs.Init(site, dt); e != core.CeNone {
		t.Fatalf("Init failed: %v", e)
	}
	return obs
}

func TestLASTScenario(t *testing.T) {
	obs := newScenarioObservatory(t)

	jd0 := astro.JulianDay0(2020, 1, 20)
	hour := 17 + 11.0/60 + 9.25/3600
	want := astro.NormalizeHours(astro.GAST(jd0, hour) - astro.RadToHrs(astro.DegToRad(-76)))

	got := obs.LAST()
	if got < 0 || got >= 24 {
		t.Fatalf("LAST out of range: %v", got)
	}
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("expected LAST %v, got %v", want, got)
	}
}

func TestObservatoryDateTime(t *testing.T) {
	obs := newScenarioObservatory(t)
	dt := obs.DateTime()
	if dt.Year != 2020 || dt.Month != 1 || dt.Day != 20 {
		t.Errorf("expected 2020-01-20, got %d-%d-%d", dt.Year, dt.Month, dt.Day)
	}
	if dt.Hour != 12 || dt.Minute != 11 || dt.Second != 9 || dt.Centisecond != 25 {
		t.Errorf("expected 12:11:09.25, got %d:%d:%d.%d", dt.Hour, dt.Minute, dt.Second, dt.Centisecond)
	}
	if dt.JulianDay != 2458868.5 {
		t.Errorf("expected JD 2458868.5, got %v", dt.JulianDay)
	}
	if math.Abs(obs.Hour()-(17+11.0/60+9.25/3600)) > 1e-6 {
		t.Errorf("expected UT hour 17.1859, got %v", obs.Hour())
	}
}

func TestJulianDayFollowsClock(t *testing.T) {
	obs := newScenarioObservatory(t)
	before := obs.JulianDay()
	for i := 0; i < 360000; i++ {
		obs.Clock().Tick()
	}
	// one sidereal hour of ticks is slightly less than one solar hour
	want := 1 / astro.SiderealRatio / 24
	if got := obs.JulianDay() - before; math.Abs(got-want) > 1e-8 {
		t.Errorf("expected JD to advance %v, got %v", want, got)
	}
}

func TestSetDateYearRollover(t *testing.T) {
	tests := []struct {
		yy   int
		want int
	}{
		{0, 2100},
		{11, 2111},
		{12, 2012},
		{20, 2020},
		{99, 2099},
	}
	for _, tt := range tests {
		obs := newScenarioObservatory(t)
		if e := obs.SetDate(3, 4, tt.yy); e != core.CeNone {
			t.Fatalf("SetDate(%d) failed: %v", tt.yy, e)
		}
		dt := obs.DateTime()
		if dt.Year != tt.want || dt.Month != 3 || dt.Day != 4 {
			t.Errorf("yy=%d: expected %d-3-4, got %d-%d-%d", tt.yy, tt.want, dt.Year, dt.Month, dt.Day)
		}
		if dt.Hour != 12 || dt.Minute != 11 {
			t.Errorf("yy=%d: time of day should be kept, got %d:%d", tt.yy, dt.Hour, dt.Minute)
		}
	}
}

func TestRangeErrorsDoNotMutate(t *testing.T) {
	obs := newScenarioObservatory(t)
	last := obs.LAST()
	before := obs.DateTime()

	bad := []func() core.CommandError{
		func() core.CommandError { return obs.SetDate(13, 1, 20) },
		func() core.CommandError { return obs.SetDate(0, 1, 20) },
		func() core.CommandError { return obs.SetDate(1, 32, 20) },
		func() core.CommandError { return obs.SetDate(1, 1, 100) },
		func() core.CommandError { return obs.SetTime(24, 0, 0, 0) },
		func() core.CommandError { return obs.SetTime(0, 60, 0, 0) },
		func() core.CommandError { return obs.SetTime(0, 0, 60, 0) },
		func() core.CommandError { return obs.SetTime(0, 0, 0, 100) },
		func() core.CommandError { return obs.SetTimezone(13) },
		func() core.CommandError { return obs.SetLongitude(4) },
		func() core.CommandError { return obs.SetLatitude(math.NaN()) },
	}
	for i, f := range bad {
		if e := f(); e != core.CeParamRange {
			t.Errorf("case %d: expected CeParamRange, got %v", i, e)
		}
	}

	if obs.LAST() != last {
		t.Errorf("LAST changed from %v to %v", last, obs.LAST())
	}
	if obs.DateTime() != before {
		t.Errorf("date/time changed from %+v to %+v", before, obs.DateTime())
	}
}

func TestSetLongitudeShiftsLAST(t *testing.T) {
	obs := newScenarioObservatory(t)
	last := obs.LAST()
	if e := obs.SetLongitude(astro.DegToRad(-61)); e != core.CeNone {
		t.Fatalf("SetLongitude failed: %v", e)
	}
	// longitude is positive west, so -61 lies 15 degrees west of -76
	if diff := astro.NormalizeHours(last - obs.LAST()); math.Abs(diff-1) > 0.0001 {
		t.Errorf("expected LAST to fall back 1h, moved %v", diff)
	}
}

func TestSetTimezoneKeepsLAST(t *testing.T) {
	obs := newScenarioObservatory(t)
	last := obs.LAST()
	if e := obs.SetTimezone(6); e != core.CeNone {
		t.Fatalf("SetTimezone failed: %v", e)
	}
	if obs.LAST() != last {
		t.Errorf("LAST changed from %v to %v", last, obs.LAST())
	}
	if dt := obs.DateTime(); dt.Hour != 11 {
		t.Errorf("local hour should move back to 11, got %d", dt.Hour)
	}
}

func TestSetLatitude(t *testing.T) {
	obs := newScenarioObservatory(t)
	if e := obs.SetLatitude(-0.5); e != core.CeNone {
		t.Fatalf("SetLatitude failed: %v", e)
	}
	lat := obs.Site().Latitude
	if lat.Sign != -1 || lat.AbsVal != 0.5 || lat.Sine != math.Sin(-0.5) {
		t.Errorf("latitude cache inconsistent: %+v", lat)
	}
}
