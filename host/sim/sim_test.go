package sim

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"gomount/astro"
	"gomount/config"
	"gomount/core"
	"gomount/protocol"
)

const testConfig = `{
	"latitude": 40, "longitude": 75, "timezone": 0,
	"slew_rate": 5, "acceleration": 10, "max_rate": 8,
	"refraction": false,
	"axis1": {"steps_per_degree": 100, "microsteps_tracking": 1, "microsteps_slewing": 1,
		"encoder_counts_per_degree": 1000},
	"axis2": {"steps_per_degree": 100, "microsteps_tracking": 1, "microsteps_slewing": 1,
		"encoder_counts_per_degree": 1000}
}`

const stepsPerRadian = 100 * 180 / math.Pi

var testEpoch = time.Date(2024, 3, 20, 22, 0, 0, 0, time.UTC)

func newTestSimulator(t *testing.T, cfgJSON string, opts Options) *Simulator {
	t.Helper()
	cfg, err := config.LoadConfig([]byte(cfgJSON))
	if err != nil {
		t.Fatal(err)
	}
	opts.Now = func() time.Time { return testEpoch }
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

// slewTo starts a goto at hour angle h and waits for it in 10 ms slices
func slewTo(t *testing.T, s *Simulator, h, d float64) {
	t.Helper()
	tel := s.Manager().Telescope()
	if err := tel.Enable(true); err != nil {
		t.Fatal(err)
	}
	ra := astro.NormalizeRad(astro.HrsToRad(s.Manager().Observatory().LAST()) - h)
	if e := tel.GotoEqu(astro.Coordinate{R: ra, D: d}); e != core.CeNone {
		t.Fatalf("GotoEqu = %v", e)
	}
	for i := 0; i < 6000; i++ {
		s.Advance(10 * time.Millisecond)
		if !tel.Status().Slewing {
			return
		}
	}
	t.Fatal("goto did not finish")
}

func TestAdvanceDrivesStepPins(t *testing.T) {
	s := newTestSimulator(t, testConfig, Options{})
	slewTo(t, s, -0.3, 0.4)

	a1, a2 := s.Manager().Telescope().Axes()
	// gpio2 and gpio4 are the default step pins
	if got, want := s.GPIO().Edges(2), uint64(abs(a1.MotorCoordinateSteps())); got < want {
		t.Errorf("axis1 pulses = %d, want at least %d", got, want)
	}
	if got, want := s.GPIO().Edges(4), uint64(abs(a2.MotorCoordinateSteps())); got < want || got == 0 {
		t.Errorf("axis2 pulses = %d, want at least %d", got, want)
	}
	if s.GPIO().ReadPin(8) {
		t.Error("axis1 enable pin high while enabled")
	}
}

func TestEncodersCorrectSlip(t *testing.T) {
	s := newTestSimulator(t, testConfig, Options{})
	slewTo(t, s, 0.5, 0.2)
	tel := s.Manager().Telescope()
	tel.SetTracking(false)

	a1, a2 := tel.Axes()
	want1, want2 := a1.InstrumentCoordinate(), a2.InstrumentCoordinate()
	a1.SetInstrumentCoordinate(want1 + 0.01)
	a2.SetInstrumentCoordinate(want2 - 0.02)

	if e := tel.SyncToEncoders(); e != core.CeNone {
		t.Fatalf("SyncToEncoders = %v", e)
	}
	tol := 1 / stepsPerRadian
	if got := a1.InstrumentCoordinate(); math.Abs(got-want1) > tol {
		t.Errorf("axis1 = %f, want %f", got, want1)
	}
	if got := a2.InstrumentCoordinate(); math.Abs(got-want2) > tol {
		t.Errorf("axis2 = %f, want %f", got, want2)
	}
}

func TestTMCOnSimulatedBus(t *testing.T) {
	s := newTestSimulator(t, `{"axis1": {"driver": "tmc2130", "cs_pin": "gpio17"}}`, Options{})
	if got := s.Manager().Driver(0).Name(); got != "tmc2130" {
		t.Errorf("axis1 driver = %q", got)
	}
	// CHOPCONF carries the microstep resolution
	if s.SPI().Register(0x6C) == 0 {
		t.Error("CHOPCONF never written")
	}
	// chip select idles high
	if !s.GPIO().ReadPin(17) {
		t.Error("chip select low")
	}
}

func TestTelemetryThrottled(t *testing.T) {
	var got []protocol.Telemetry
	s := newTestSimulator(t, testConfig, Options{
		TelemetryRate: 1,
		OnTelemetry:   func(tel protocol.Telemetry) { got = append(got, tel) },
	})
	for i := 0; i < 10; i++ {
		s.Advance(time.Millisecond)
	}
	if len(got) != 1 {
		t.Fatalf("published %d snapshots, want 1", len(got))
	}
	if !got[0].Has(protocol.FlagAtHome) {
		t.Errorf("flags = %08b", got[0].Flags)
	}
}

func TestNoTelemetryByDefault(t *testing.T) {
	called := false
	s := newTestSimulator(t, testConfig, Options{
		OnTelemetry: func(protocol.Telemetry) { called = true },
	})
	s.Advance(10 * time.Millisecond)
	if called {
		t.Error("snapshot published with a zero rate")
	}
}

func TestRunServesLink(t *testing.T) {
	s := newTestSimulator(t, testConfig, Options{})
	simEnd, hostEnd := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, simEnd) }()

	host := protocol.NewHostTransport(hostEnd)
	defer host.Close()

	if err := host.SendCommand(protocol.CmdQuery, nil); err != nil {
		t.Fatal(err)
	}
	msg, err := host.ReceiveMessage(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != protocol.MsgStatus {
		t.Fatalf("message %s, want status", protocol.CommandName(msg.ID))
	}
	tel, err := protocol.DecodeTelemetry(&msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if !tel.Has(protocol.FlagAtHome) {
		t.Errorf("flags = %08b", tel.Flags)
	}

	if err := host.SendCommand(protocol.CmdEnable, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 1)
	}); err != nil {
		t.Fatal(err)
	}
	msg, err = host.ReceiveMessage(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	cmd, _ := protocol.DecodeVLQUint(&msg.Payload)
	code, _ := protocol.DecodeVLQUint(&msg.Payload)
	if msg.ID != protocol.MsgResult || cmd != protocol.CmdEnable || code != 0 {
		t.Errorf("enable answered %s %d %d", protocol.CommandName(msg.ID), cmd, code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunReturnsWhenPeerHangsUp(t *testing.T) {
	s := newTestSimulator(t, testConfig, Options{})
	simEnd, hostEnd := net.Pipe()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), simEnd) }()
	hostEnd.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
