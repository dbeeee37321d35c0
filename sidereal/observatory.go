package sidereal

import (
	"math"
	"time"

	"gomount/astro"
	"gomount/core"
)

// DateTime is a civil date and time. Timezone is in hours with UT = local +
// Timezone. JulianDay is the Julian Day at 0h UT of the UT date.
type DateTime struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Centisecond int
	Timezone    float64
	JulianDay   float64
}

var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

func julianDay(t time.Time) float64 {
	t = t.UTC()
	hours := float64(t.Hour()) + float64(t.Minute())/60 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600
	return astro.JulianDay0(t.Year(), int(t.Month()), t.Day()) + hours/24
}

func timeFromJulianDay(jd float64) time.Time {
	ns := math.Round((jd - astro.J2000) * 86400e9)
	return j2000.Add(time.Duration(ns)).Round(10 * time.Millisecond)
}

// Observatory owns the date, time and site. Written from command context
// only; the clock it reseeds is shared with the tick context.
type Observatory struct {
	site     astro.Site
	timezone float64
	refUT    time.Time
	clock    *Clock
}

// NewObservatory creates an observatory reseeding clock
func NewObservatory(clock *Clock) *Observatory {
	return &Observatory{clock: clock, refUT: j2000}
}

// Init sets site and local date/time, then computes LAST
func (o *Observatory) Init(site astro.Site, dt DateTime) core.CommandError {
	if dt.Year < 1900 || dt.Year > 2199 {
		return core.CeParamRange
	}
	if e := checkDate(dt.Month, dt.Day); e != core.CeNone {
		return e
	}
	if e := checkTime(dt.Hour, dt.Minute, dt.Second, dt.Centisecond); e != core.CeNone {
		return e
	}
	if e := checkTimezone(dt.Timezone); e != core.CeNone {
		return e
	}
	if e := checkSite(site.Latitude.Value, site.Longitude); e != core.CeNone {
		return e
	}

	o.site = astro.NewSite(site.Latitude.Value, site.Longitude)
	o.timezone = dt.Timezone
	o.setLocal(dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.Centisecond)
	return core.CeNone
}

func checkDate(month, day int) core.CommandError {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return core.CeParamRange
	}
	return core.CeNone
}

func checkTime(hour, minute, second, cs int) core.CommandError {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 ||
		second < 0 || second > 59 || cs < 0 || cs > 99 {
		return core.CeParamRange
	}
	return core.CeNone
}

func checkTimezone(tz float64) core.CommandError {
	if math.IsNaN(tz) || tz < -14 || tz > 12 {
		return core.CeParamRange
	}
	return core.CeNone
}

func checkSite(lat, lon float64) core.CommandError {
	if math.IsNaN(lat) || math.Abs(lat) > astro.Deg90 {
		return core.CeParamRange
	}
	if math.IsNaN(lon) || math.Abs(lon) > astro.Deg180 {
		return core.CeParamRange
	}
	return core.CeNone
}

// ExpandYear maps a two-digit year: 00-11 are 2100s, 12-99 are 2000s
func ExpandYear(yy int) int {
	if yy <= 11 {
		return 2100 + yy
	}
	return 2000 + yy
}

func (o *Observatory) setLocal(year, month, day, hour, minute, second, cs int) {
	local := time.Date(year, time.Month(month), day, hour, minute, second, cs*1e7, time.UTC)
	ut := local.Add(time.Duration(o.timezone * float64(time.Hour)))
	o.AdjustLAST(julianDay(ut))
}

// SetDate changes the local calendar date keeping the local time of day.
// yy is a two-digit year.
func (o *Observatory) SetDate(month, day, yy int) core.CommandError {
	if yy < 0 || yy > 99 {
		return core.CeParamRange
	}
	if e := checkDate(month, day); e != core.CeNone {
		return e
	}
	now := o.DateTime()
	o.setLocal(ExpandYear(yy), month, day, now.Hour, now.Minute, now.Second, now.Centisecond)
	return core.CeNone
}

// SetTime changes the local time of day keeping the local date
func (o *Observatory) SetTime(hour, minute, second, cs int) core.CommandError {
	if e := checkTime(hour, minute, second, cs); e != core.CeNone {
		return e
	}
	now := o.DateTime()
	o.setLocal(now.Year, now.Month, now.Day, hour, minute, second, cs)
	return core.CeNone
}

// SetTimezone changes the offset used for local date and time. The UT
// instant, and so sidereal time, is unchanged.
func (o *Observatory) SetTimezone(hours float64) core.CommandError {
	if e := checkTimezone(hours); e != core.CeNone {
		return e
	}
	o.timezone = hours
	return core.CeNone
}

// SetLongitude changes the site longitude (radians, positive west) and
// recomputes LAST.
func (o *Observatory) SetLongitude(lon float64) core.CommandError {
	if math.IsNaN(lon) || math.Abs(lon) > astro.Deg180 {
		return core.CeParamRange
	}
	jd := o.JulianDay()
	o.site.Longitude = lon
	o.AdjustLAST(jd)
	return core.CeNone
}

// SetLatitude changes the site latitude in radians
func (o *Observatory) SetLatitude(lat float64) core.CommandError {
	if math.IsNaN(lat) || math.Abs(lat) > astro.Deg90 {
		return core.CeParamRange
	}
	o.site.SetLatitude(lat)
	return core.CeNone
}

// AdjustLAST recomputes LAST for the UT instant jd and reseeds the clock,
// making jd the new reference time.
func (o *Observatory) AdjustLAST(jd float64) {
	jd0 := math.Floor(jd-0.5) + 0.5
	hour := (jd - jd0) * 24
	last := astro.LAST(jd0, hour, o.site.Longitude)

	o.clock.UpdateLAST(last)
	o.refUT = timeFromJulianDay(jd)

	core.RecordTiming(core.EvtReseed, 0, uint32(last*360000), uint32(jd0))
	core.DebugPrintln("[OBS] LAST " + core.Ftoa(last, 6) + "h JD " + core.Ftoa(jd, 5))
}

// elapsed returns solar time since the reference
func (o *Observatory) elapsed() time.Duration {
	seconds := float64(o.clock.Elapsed()) / 100 / astro.SiderealRatio
	return time.Duration(seconds * float64(time.Second))
}

// JulianDay returns the current UT Julian Day including the day fraction
func (o *Observatory) JulianDay() float64 {
	seconds := float64(o.clock.Elapsed()) / 100 / astro.SiderealRatio
	return julianDay(o.refUT) + seconds/86400
}

// Hour returns the current UT hour of day
func (o *Observatory) Hour() float64 {
	jd := o.JulianDay()
	return (jd - (math.Floor(jd-0.5) + 0.5)) * 24
}

// DateTime returns the current local date and time
func (o *Observatory) DateTime() DateTime {
	ut := o.refUT.Add(o.elapsed())
	local := ut.Add(-time.Duration(o.timezone * float64(time.Hour)))
	return DateTime{
		Year:        local.Year(),
		Month:       int(local.Month()),
		Day:         local.Day(),
		Hour:        local.Hour(),
		Minute:      local.Minute(),
		Second:      local.Second(),
		Centisecond: local.Nanosecond() / 1e7,
		Timezone:    o.timezone,
		JulianDay:   astro.JulianDay0(ut.Year(), int(ut.Month()), ut.Day()),
	}
}

// Site returns a copy of the site
func (o *Observatory) Site() astro.Site {
	return o.site
}

// LAST returns the running Local Apparent Sidereal Time in hours
func (o *Observatory) LAST() float64 {
	return o.clock.LAST()
}

// Clock returns the sidereal clock
func (o *Observatory) Clock() *Clock {
	return o.clock
}
