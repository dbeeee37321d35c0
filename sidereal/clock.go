// Package sidereal keeps Local Apparent Sidereal Time running between
// astronomical recomputations, and owns the observatory date, time and site.
package sidereal

import (
	"sync/atomic"

	"gomount/astro"
	"gomount/core"
)

const (
	// CentisecondsPerDay is the wrap of the exposed counter (24 sidereal hours)
	CentisecondsPerDay = 8640000

	// counterModulus keeps the raw counter a whole number of days below 2^32
	// so the exposed value and elapsed time stay continuous across the wrap.
	counterModulus = CentisecondsPerDay * 497
)

// TickPeriod is one sidereal centisecond in 1/16 us units
var TickPeriod = tickPeriod()

func tickPeriod() uint32 {
	p := 10000 * core.SubMicros / astro.SiderealRatio
	return uint32(p + 0.5)
}

// Clock is the sidereal centisecond counter. Tick is the only writer apart
// from reseeding, and every access is a single atomic operation.
type Clock struct {
	counter   atomic.Uint32
	reference atomic.Uint32
}

// NewClock returns a clock at LAST 0h
func NewClock() *Clock {
	return &Clock{}
}

// Start sets the sidereal tick period on a timer whose callback is Tick
func (c *Clock) Start(timer core.PeriodicTimer) {
	timer.SetPeriod(TickPeriod)
}

// Tick advances the counter by exactly one centisecond.
// Safe to call from the periodic callback.
func (c *Clock) Tick() {
	for {
		old := c.counter.Load()
		next := old + 1
		if next >= counterModulus {
			next = 0
		}
		if c.counter.CompareAndSwap(old, next) {
			return
		}
	}
}

// Raw returns the counter before the 24h wrap
func (c *Clock) Raw() uint32 {
	return c.counter.Load()
}

// Centiseconds returns sidereal centiseconds into the day
func (c *Clock) Centiseconds() uint32 {
	return c.counter.Load() % CentisecondsPerDay
}

// LAST returns Local Apparent Sidereal Time in hours, [0, 24)
func (c *Clock) LAST() float64 {
	return astro.NormalizeHours(float64(c.Centiseconds()) / 360000.0)
}

// UpdateLAST reseeds the counter from a freshly computed LAST in hours and
// makes the new value the reference point for elapsed time.
func (c *Clock) UpdateLAST(hours float64) {
	cs := uint32(astro.NormalizeHours(hours)*360000.0 + 0.5)
	if cs >= CentisecondsPerDay {
		cs = 0
	}
	c.counter.Store(cs)
	c.reference.Store(cs)
}

// Reference returns the counter value at the last reseed
func (c *Clock) Reference() uint32 {
	return c.reference.Load()
}

// Elapsed returns sidereal centiseconds since the last reseed
func (c *Clock) Elapsed() uint32 {
	now := c.counter.Load()
	ref := c.reference.Load()
	if now >= ref {
		return now - ref
	}
	return now + counterModulus - ref
}
