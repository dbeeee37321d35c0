package axis

import "math"

// ramp is the goto speed profile: accelerate from the minimum rate, cruise
// at the maximum, and decelerate so that v² = 2·a·distance near the target.
type ramp struct {
	active  bool
	maxRate float64
	minRate float64
	accel   float64
	rate    float64
}

// AutoSlewRateByDistance starts a goto speed profile. Rates are in measures
// per second, accel in measures per second squared.
func (a *Axis) AutoSlewRateByDistance(maxRate, minRate, accel float64) {
	if maxRate <= 0 || accel <= 0 {
		return
	}
	if minRate <= 0 || minRate > maxRate {
		minRate = maxRate / 100
	}
	a.ramp = ramp{
		active:  true,
		maxRate: maxRate,
		minRate: minRate,
		accel:   accel,
		rate:    minRate,
	}
	a.SetFastPath(true)
	a.SetFrequency(minRate)
}

// Slewing reports whether a goto profile is running
func (a *Axis) Slewing() bool {
	return a.ramp.active
}

// Poll advances the speed profile by dt seconds. It returns true once the
// axis has arrived, after which the profile is finished and the axis is
// stopped.
func (a *Axis) Poll(dt float64) bool {
	if !a.ramp.active {
		return a.AtTarget()
	}
	if a.AtTarget() {
		a.ramp.active = false
		a.SetFastPath(false)
		a.SetFrequency(0)
		return true
	}

	r := &a.ramp
	rate := math.Sqrt(2 * r.accel * a.Distance())
	if up := r.rate + r.accel*dt; rate > up {
		rate = up
	}
	if rate > r.maxRate {
		rate = r.maxRate
	}
	if rate < r.minRate {
		rate = r.minRate
	}
	r.rate = rate
	a.SetFrequency(rate)
	return false
}

// AbortSlew ends a goto profile and stops the axis where it is
func (a *Axis) AbortSlew() {
	a.SetFastPath(false)
	a.Stop()
}
