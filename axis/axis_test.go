package axis

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gomount/core"
)

type fakeStepper struct {
	high       bool
	pulses     int
	dirChanges int
	reverse    bool
}

func (s *fakeStepper) Init(stepPin, dirPin core.GPIOPin, invertStep, invertDir bool) error {
	return nil
}

func (s *fakeStepper) SetStep(active bool) {
	if active && !s.high {
		s.pulses++
	}
	s.high = active
}

func (s *fakeStepper) SetDirection(reverse bool) {
	s.dirChanges++
	s.reverse = reverse
}

func (s *fakeStepper) Stop()           { s.high = false }
func (s *fakeStepper) GetName() string { return "fake" }

type fakeTimer struct {
	period uint32
	sets   int
}

func (f *fakeTimer) SetPeriod(p uint32)       { f.period = p; f.sets++ }
func (f *fakeTimer) SetPeriodLocked(p uint32) { f.period = p; f.sets++ }
func (f *fakeTimer) Period() uint32           { return f.period }

type fakeDriver struct {
	microsteps []int
	fault      bool
	enabled    bool
	refuse     error
}

func (d *fakeDriver) SetMicrosteps(m int) error {
	d.microsteps = append(d.microsteps, m)
	return d.refuse
}

func (d *fakeDriver) Enable(on bool) error { d.enabled = on; return nil }
func (d *fakeDriver) Fault() bool          { return d.fault }

func newTestAxis(cfg Config) (*Axis, *fakeStepper, *fakeTimer) {
	s := &fakeStepper{}
	tm := &fakeTimer{}
	a := New(cfg, s)
	a.Attach(tm)
	return a, s, tm
}

// stepUntil runs whole steps until the axis reaches its target
func stepUntil(t *testing.T, a *Axis, limit int) int {
	t.Helper()
	for n := 0; n < limit; n++ {
		if a.AtTarget() && a.ph == phaseDirection {
			return n
		}
		a.Step()
		a.Step()
	}
	t.Fatalf("axis did not reach target in %d steps: motor %d target %d", limit, a.MotorCoordinateSteps(), a.TargetSteps())
	return limit
}

func TestNewAxisDefaults(t *testing.T) {
	a := New(Config{}, &fakeStepper{})
	if a.StepsPerMeasure() != 1 {
		t.Errorf("expected spm 1, got %v", a.StepsPerMeasure())
	}
	if a.StepSize() != 1 {
		t.Errorf("expected step size 1, got %d", a.StepSize())
	}
	if a.MicrostepState() != MicrostepTracking {
		t.Errorf("expected tracking microstep state, got %v", a.MicrostepState())
	}
}

func TestStepConvergence(t *testing.T) {
	for _, target := range []int64{37, -21, 1} {
		a, s, _ := newTestAxis(Config{})
		a.SetMotorCoordinateSteps(0)
		a.SetTargetCoordinate(float64(target))

		prev := abs64(target)
		for i := 0; i < 200; i++ {
			a.Step() // direction phase
			diff := abs64(a.TargetSteps() - a.MotorCoordinateSteps())
			if prev > 0 && diff != prev-1 {
				t.Fatalf("target %d: distance went from %d to %d", target, prev, diff)
			}
			if prev == 0 && diff != 0 {
				t.Fatalf("target %d: axis left the target", target)
			}
			prev = diff
			a.Step() // pulse phase
		}
		if s.pulses != int(abs64(target)) {
			t.Errorf("target %d: expected %d pulses, got %d", target, abs64(target), s.pulses)
		}
	}
}

func TestBacklashTakeUp(t *testing.T) {
	a, s, _ := newTestAxis(Config{})
	a.SetBacklash(3)

	a.SetTargetCoordinate(5)
	stepUntil(t, a, 100)
	if a.MotorCoordinateSteps() != 5 || a.BacklashSteps() != 3 {
		t.Errorf("forward: expected motor 5 backlash 3, got %d %d", a.MotorCoordinateSteps(), a.BacklashSteps())
	}
	if s.pulses != 8 {
		t.Errorf("forward: expected 8 pulses including backlash, got %d", s.pulses)
	}

	a.SetTargetCoordinate(2)
	stepUntil(t, a, 100)
	if a.MotorCoordinateSteps() != 2 || a.BacklashSteps() != 0 {
		t.Errorf("reverse: expected motor 2 backlash 0, got %d %d", a.MotorCoordinateSteps(), a.BacklashSteps())
	}
	if s.pulses != 14 {
		t.Errorf("reverse: expected 14 pulses in total, got %d", s.pulses)
	}
	if s.dirChanges != 2 {
		t.Errorf("direction should be written once per change, got %d writes", s.dirChanges)
	}
}

func TestBacklashBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, _, _ := newTestAxis(Config{})
	a.SetBacklash(6)

	for round := 0; round < 200; round++ {
		a.SetTargetCoordinate(float64(rng.Intn(41) - 20))
		if round%3 == 0 {
			a.SetFastPath(round%2 == 0)
		}
		for i := 0; i < rng.Intn(60); i++ {
			a.Step()
			b := a.BacklashSteps()
			if b < 0 || b > 6 {
				t.Fatalf("round %d: backlash %d outside [0, 6]", round, b)
			}
		}
	}
}

func TestFastPathMatchesNormalPath(t *testing.T) {
	normal, _, _ := newTestAxis(Config{})
	fast, _, _ := newTestAxis(Config{})
	normal.SetBacklash(4)
	fast.SetBacklash(4)
	fast.SetFastPath(true)

	for _, target := range []float64{30, -12, 7, 7, -40} {
		normal.SetTargetCoordinate(target)
		fast.SetTargetCoordinate(target)
		for i := 0; i < 400; i++ {
			normal.Step()
			fast.Step()
			if normal.MotorCoordinateSteps() != fast.MotorCoordinateSteps() ||
				normal.BacklashSteps() != fast.BacklashSteps() {
				t.Fatalf("target %v step %d: paths diverged", target, i)
			}
		}
	}
}

func TestTrackingAdvancesTarget(t *testing.T) {
	a, s, _ := newTestAxis(Config{})
	a.SetTracking(true)
	for i := 0; i < 100; i++ {
		a.Step()
		a.Step()
	}
	if a.TargetSteps() != 100 {
		t.Errorf("expected target 100 after 100 ticks, got %d", a.TargetSteps())
	}
	// the motor follows one step behind the target
	if a.MotorCoordinateSteps() != 99 || s.pulses != 99 {
		t.Errorf("expected motor 99 with 99 pulses, got %d %d", a.MotorCoordinateSteps(), s.pulses)
	}

	a.SetTrackingStep(-1)
	for i := 0; i < 10; i++ {
		a.Step()
		a.Step()
	}
	if a.TargetSteps() != 90 {
		t.Errorf("expected reverse tracking to reach 90, got %d", a.TargetSteps())
	}
}

func TestFrequencyClamp(t *testing.T) {
	// measures are degrees, one arc-second per step
	a, _, tm := newTestAxis(Config{StepsPerMeasure: 3600})
	a.SetFrequencyMax(1)
	a.SetFrequency(1000)

	want := uint32(a.MinPeriodHalf()*16 + 0.5)
	if a.Period() != want {
		t.Errorf("expected clamped period %d, got %d", want, a.Period())
	}
	if tm.period != want {
		t.Errorf("timer should receive %d, got %d", want, tm.period)
	}
	if math.Abs(a.MinPeriodHalf()-1000000.0/3600/2) > 1e-9 {
		t.Errorf("unexpected minimum half period %v", a.MinPeriodHalf())
	}

	a.SetFrequency(0.5)
	slow := 500000.0 / (0.5 * 3600)
	if got := a.Period(); got != uint32(slow*16+0.5) {
		t.Errorf("unclamped rate gave period %d", got)
	}
}

func TestFrequencyStops(t *testing.T) {
	for _, f := range []float64{0, math.NaN(), math.Inf(1), math.Inf(-1), 1e-12} {
		a, _, tm := newTestAxis(Config{})
		a.SetFrequency(10)
		a.SetFrequency(f)
		if a.Period() != 0 || tm.period != 0 {
			t.Errorf("freq %v: expected stopped axis, got period %d", f, a.Period())
		}
		if a.Frequency() != 0 {
			t.Errorf("freq %v: expected reported frequency 0, got %v", f, a.Frequency())
		}
	}
}

func TestFrequencyBelowHardwareMinimum(t *testing.T) {
	a, _, _ := newTestAxis(Config{})
	a.SetFrequency(1000000)
	if a.Period() != 0 {
		t.Errorf("half period of 0.5us should stop the axis, got %d", a.Period())
	}
	a.SetFrequency(-100)
	if a.Period() != 5000*16 {
		t.Errorf("negative rate should use its magnitude, got %d", a.Period())
	}
}

func TestStopLowersStepLine(t *testing.T) {
	a, s, _ := newTestAxis(Config{})
	a.SetTargetCoordinate(10)
	a.SetFrequency(100)
	a.Step()
	a.Step()
	if !s.high {
		t.Fatal("expected step line high after pulse phase")
	}
	a.Stop()
	if s.high {
		t.Error("Stop should lower the step line")
	}
	if !a.AtTarget() {
		t.Error("Stop should leave the axis at its target")
	}
}

func TestCoordinateConversions(t *testing.T) {
	a, _, _ := newTestAxis(Config{StepsPerMeasure: 100})
	a.SetMotorCoordinateSteps(50)

	a.SetInstrumentCoordinate(2)
	if a.IndexSteps() != 150 {
		t.Errorf("expected index 150, got %d", a.IndexSteps())
	}
	if a.InstrumentCoordinate() != 2 {
		t.Errorf("expected instrument coordinate 2, got %v", a.InstrumentCoordinate())
	}
	if a.MotorCoordinateSteps() != 50 {
		t.Errorf("setting the instrument coordinate must not move the motor")
	}

	a.SetTargetCoordinate(3)
	if a.TargetSteps() != 150 {
		t.Errorf("expected motor target 150, got %d", a.TargetSteps())
	}
	if a.TargetCoordinate() != 3 {
		t.Errorf("expected target coordinate 3, got %v", a.TargetCoordinate())
	}

	a.SetBacklash(0.05)
	if a.Backlash() != 0.05 {
		t.Errorf("expected backlash 0.05, got %v", a.Backlash())
	}

	a.SetMotorCoordinateSteps(10)
	if a.IndexSteps() != 0 || a.BacklashSteps() != 0 || a.TargetSteps() != 10 {
		t.Errorf("SetMotorCoordinateSteps should reset index, backlash and target")
	}
}

func TestLimits(t *testing.T) {
	a, _, _ := newTestAxis(Config{StepsPerMeasure: 1000})
	a.SetMinCoordinate(-math.Pi / 2)
	a.SetMaxCoordinate(math.Pi / 2)

	tests := []struct {
		v    float64
		want bool
	}{
		{0, true},
		{1.5, true},
		{math.Pi, false},
		{-2, false},
	}
	for _, tt := range tests {
		if got := a.WithinLimits(tt.v); got != tt.want {
			t.Errorf("WithinLimits(%v): expected %v, got %v", tt.v, tt.want, got)
		}
	}
	if math.Abs(a.MaxCoordinate()-math.Pi/2) > 0.001 {
		t.Errorf("unexpected max coordinate %v", a.MaxCoordinate())
	}
}

func TestMicrostepSwitching(t *testing.T) {
	cfg := Config{StepsPerMeasure: 1, MicrostepsTracking: 16, MicrostepsSlewing: 2, SlewingFrequency: 10}
	a, s, tm := newTestAxis(cfg)
	d := &fakeDriver{}
	a.AttachDriver(d)

	a.SetTargetCoordinate(1003)
	a.SetFrequency(100)
	if a.MicrostepState() != MicrostepSlewingReady {
		t.Fatalf("expected slewing-ready, got %v", a.MicrostepState())
	}
	base := a.Period()

	a.Step()
	if a.MicrostepState() != MicrostepSlewing || a.StepSize() != 8 {
		t.Fatalf("expected slewing with step size 8, got %v %d", a.MicrostepState(), a.StepSize())
	}
	if tm.period != base*8 {
		t.Errorf("slewing should stretch the period to %d, got %d", base*8, tm.period)
	}
	a.Step()

	stepUntil(t, a, 1000)
	if a.MotorCoordinateSteps() != 1003 {
		t.Errorf("expected motor 1003, got %d", a.MotorCoordinateSteps())
	}
	if a.MicrostepState() != MicrostepTracking || a.StepSize() != 1 {
		t.Errorf("expected tracking resolution at the end, got %v %d", a.MicrostepState(), a.StepSize())
	}
	if len(d.microsteps) != 2 || d.microsteps[0] != 2 || d.microsteps[1] != 16 {
		t.Errorf("expected driver resolutions [2 16], got %v", d.microsteps)
	}
	// 125 coarse steps then 3 fine ones
	if s.pulses != 128 {
		t.Errorf("expected 128 pulses, got %d", s.pulses)
	}
}

func TestRefusedMicrostepSwitchKeepsCount(t *testing.T) {
	cfg := Config{StepsPerMeasure: 1, MicrostepsTracking: 16, MicrostepsSlewing: 2, SlewingFrequency: 10}
	a, s, tm := newTestAxis(cfg)
	d := &fakeDriver{refuse: errors.New("spi write failed")}
	a.AttachDriver(d)

	a.SetTargetCoordinate(1000)
	a.SetFrequency(100)
	base := a.Period()

	a.Step()
	if a.MicrostepState() != MicrostepTracking || a.StepSize() != 1 {
		t.Fatalf("refused switch: got %v with step size %d", a.MicrostepState(), a.StepSize())
	}
	if tm.period != base {
		t.Errorf("period changed to %d after a refused switch", tm.period)
	}
	a.Step()

	stepUntil(t, a, 2000)
	if a.MotorCoordinateSteps() != 1000 || s.pulses != 1000 {
		t.Errorf("motor %d after %d fine pulses, want 1000 each", a.MotorCoordinateSteps(), s.pulses)
	}
	if len(d.microsteps) != 1 || d.microsteps[0] != 2 {
		t.Errorf("driver asked for %v", d.microsteps)
	}
}

func TestRefusedReturnToTrackingKeepsCoarseCount(t *testing.T) {
	cfg := Config{StepsPerMeasure: 1, MicrostepsTracking: 16, MicrostepsSlewing: 2, SlewingFrequency: 10}
	a, s, _ := newTestAxis(cfg)
	d := &fakeDriver{}
	a.AttachDriver(d)

	a.SetTargetCoordinate(1003)
	a.SetFrequency(100)
	for i := 0; i < 400; i++ {
		if a.MotorCoordinateSteps() == 1000 {
			d.refuse = errors.New("spi write failed")
		}
		a.Step()
		a.Step()
	}
	// the chip is still at the coarse resolution, so the last 3 fine steps wait
	if a.MotorCoordinateSteps() != 1000 || a.StepSize() != 8 {
		t.Errorf("motor %d step size %d, want 1000 and 8", a.MotorCoordinateSteps(), a.StepSize())
	}
	if s.pulses != 125 {
		t.Errorf("expected 125 coarse pulses, got %d", s.pulses)
	}
	if a.MicrostepState() != MicrostepTrackingReady {
		t.Errorf("expected a pending return to tracking, got %v", a.MicrostepState())
	}

	d.refuse = nil
	stepUntil(t, a, 100)
	if a.MotorCoordinateSteps() != 1003 || a.StepSize() != 1 {
		t.Errorf("after retry: motor %d step size %d", a.MotorCoordinateSteps(), a.StepSize())
	}
}

func TestSlowRateKeepsTrackingResolution(t *testing.T) {
	cfg := Config{MicrostepsTracking: 16, MicrostepsSlewing: 2, SlewingFrequency: 10}
	a, _, _ := newTestAxis(cfg)
	a.SetFrequency(5)
	if a.MicrostepState() != MicrostepTracking {
		t.Errorf("expected tracking state at a slow rate, got %v", a.MicrostepState())
	}
	a.SetFrequency(50)
	a.SetFrequency(5)
	if a.MicrostepState() != MicrostepTracking {
		t.Errorf("uncommitted slewing request should be withdrawn, got %v", a.MicrostepState())
	}
}

func TestEnableAndFault(t *testing.T) {
	a, _, _ := newTestAxis(Config{})
	d := &fakeDriver{}
	a.AttachDriver(d)

	if a.Enabled() {
		t.Error("axis should start disabled")
	}
	if err := a.Enable(true); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if !a.Enabled() || !d.enabled {
		t.Error("expected axis and driver enabled")
	}
	if a.Fault() {
		t.Error("unexpected fault")
	}
	d.fault = true
	if !a.Fault() {
		t.Error("expected driver fault to be reported")
	}
}

type fakeEncoder struct {
	counts int64
	err    error
}

func (e *fakeEncoder) Read() (int64, error) { return e.counts, e.err }

func TestReadEncoder(t *testing.T) {
	a, _, _ := newTestAxis(Config{})
	if _, err := a.ReadEncoder(); err != ErrNoEncoder {
		t.Errorf("expected ErrNoEncoder, got %v", err)
	}
	a.AttachEncoder(&fakeEncoder{counts: 4096}, 2048)
	v, err := a.ReadEncoder()
	if err != nil || v != 2 {
		t.Errorf("expected 2, got %v %v", v, err)
	}
}
