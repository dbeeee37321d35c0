package core

import "testing"

// runFor dispatches timers once per microsecond from now to now+us
func runFor(us uint32) {
	start := GetTime()
	for i := uint32(1); i <= us; i++ {
		SetTime(start + i)
		ProcessTimers()
	}
}

func TestSoftPeriodicFractionalPeriod(t *testing.T) {
	resetTimers(t)

	calls := 0
	p := NewSoftPeriodic(func() { calls++ })
	p.SetPeriod(24) // 1.5 us

	runFor(3000)
	if calls < 1999 || calls > 2001 {
		t.Errorf("calls = %d, want about 2000", calls)
	}
	if !p.Running() || p.Period() != 24 {
		t.Errorf("running=%v period=%d", p.Running(), p.Period())
	}
}

func TestSoftPeriodicStopAndRestart(t *testing.T) {
	resetTimers(t)

	calls := 0
	p := NewSoftPeriodic(func() { calls++ })
	p.SetPeriod(10 * SubMicros)
	runFor(100)
	if calls != 10 {
		t.Fatalf("calls = %d, want 10", calls)
	}

	p.SetPeriod(0)
	runFor(100)
	if calls != 10 {
		t.Fatalf("calls after stop = %d", calls)
	}
	if p.Running() {
		t.Error("timer still running after stop")
	}

	stopped := calls
	p.SetPeriod(5 * SubMicros)
	p.SetPeriod(5 * SubMicros)
	runFor(50)
	if calls-stopped != 10 {
		t.Errorf("calls after restart = %d, want 10", calls-stopped)
	}
}

func TestSoftPeriodicRestartBeforePendingWake(t *testing.T) {
	resetTimers(t)

	calls := 0
	p := NewSoftPeriodic(func() { calls++ })
	p.SetPeriod(100 * SubMicros)
	runFor(100)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// stopped, but the wake for the old period is still queued
	p.SetPeriod(0)
	runFor(10)
	p.SetPeriod(5 * SubMicros)
	runFor(5)
	if calls != 2 {
		t.Errorf("calls = %d, want the restarted period to fire after 5 us", calls)
	}
	if wake, ok := NextWake(); !ok || wake != GetTime()+5 {
		t.Errorf("next wake = %d (%v), want %d", wake, ok, GetTime()+5)
	}
}

func TestSoftPeriodicStopFromCallback(t *testing.T) {
	resetTimers(t)

	calls := 0
	var p *SoftPeriodic
	p = NewSoftPeriodic(func() {
		calls++
		if calls == 3 {
			p.SetPeriodLocked(0)
		}
	})
	p.SetPeriod(SubMicros)
	runFor(20)

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if p.Running() {
		t.Error("timer still running")
	}
}

func TestSoftPeriodicStopCancels(t *testing.T) {
	resetTimers(t)

	calls := 0
	p := NewSoftPeriodic(func() { calls++ })
	p.SetPeriod(10 * SubMicros)
	runFor(25)
	p.Stop()
	if _, ok := NextWake(); ok {
		t.Error("timer still queued after Stop")
	}
	runFor(100)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
