package core

// PeriodicTimer invokes a callback at a period that may change at any time.
// Periods are in 1/SubMicros microsecond units; zero stops the callbacks.
type PeriodicTimer interface {
	SetPeriod(period uint32)

	// SetPeriodLocked is SetPeriod for callers already inside the critical
	// section, including the timer's own callback.
	SetPeriodLocked(period uint32)

	Period() uint32
}

// SoftPeriodic is a PeriodicTimer driven by the timer list. The fraction of a
// microsecond left over by each period is carried into the next one, so the
// long-run rate matches the requested period exactly.
type SoftPeriodic struct {
	timer   Timer
	fn      func()
	period  uint32
	frac    uint32
	running bool
}

// NewSoftPeriodic creates a stopped periodic timer that calls fn
func NewSoftPeriodic(fn func()) *SoftPeriodic {
	p := &SoftPeriodic{fn: fn}
	p.timer.Handler = p.handler
	return p
}

func (p *SoftPeriodic) handler(t *Timer) uint8 {
	if p.period != 0 {
		p.fn()
	}
	// fn may have stopped the timer
	if p.period == 0 {
		p.running = false
		return SF_DONE
	}

	acc := p.frac + p.period
	t.WakeTime += acc / SubMicros
	p.frac = acc % SubMicros
	return SF_RESCHEDULE
}

// SetPeriod publishes a new period. A running timer picks it up at the next
// callback; a stopped one is started right away, dropping any wake left
// queued by the old period.
func (p *SoftPeriodic) SetPeriod(period uint32) {
	state := DisableInterrupts()
	p.SetPeriodLocked(period)
	RestoreInterrupts(state)
}

func (p *SoftPeriodic) SetPeriodLocked(period uint32) {
	old := p.period
	p.period = period
	if period == 0 {
		return
	}
	// inside its own callback the timer is not queued and the handler
	// reschedules it
	if !p.running || (old == 0 && p.timer.queued) {
		removeTimer(&p.timer)
		p.running = true
		p.frac = period % SubMicros
		p.timer.WakeTime = GetTime() + period/SubMicros
		insertTimer(&p.timer)
	}
}

// Period returns the published period
func (p *SoftPeriodic) Period() uint32 {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)
	return p.period
}

// Running reports whether the timer is queued
func (p *SoftPeriodic) Running() bool {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)
	return p.running
}

// Stop cancels the timer at once instead of at its next callback
func (p *SoftPeriodic) Stop() {
	state := DisableInterrupts()
	p.period = 0
	p.running = false
	removeTimer(&p.timer)
	RestoreInterrupts(state)
}
