package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gomount/astro"
	"gomount/config"
	"gomount/core"
	"gomount/host/client"
	"gomount/host/logging"
	"gomount/host/monitor"
	"gomount/host/sim"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		ra, dec         string
		wantRA, wantDec float64 // hours, degrees
	}{
		{"5.5", "-5.25", 5.5, -5.25},
		{"5:30", "-5:15", 5.5, -5.25},
		{"05:30:36", "+45:30:36", 5.51, 45.51},
		{"0", "90", 0, 90},
		{" 23:59:59.9 ", "-90", 23 + 59./60 + 59.9/3600, -90},
	}
	for _, c := range cases {
		ra, dec, err := ParseTarget(c.ra, c.dec)
		if err != nil {
			t.Errorf("ParseTarget(%q, %q) = %v", c.ra, c.dec, err)
			continue
		}
		if math.Abs(ra-astro.HrsToRad(c.wantRA)) > 1e-9 || math.Abs(dec-astro.DegToRad(c.wantDec)) > 1e-9 {
			t.Errorf("ParseTarget(%q, %q) = %v, %v", c.ra, c.dec, ra, dec)
		}
	}
}

func TestParseTargetRejects(t *testing.T) {
	cases := [][2]string{
		{"24", "0"},
		{"-1", "0"},
		{"1", "90.5"},
		{"1", "-91"},
		{"1:60", "0"},
		{"1", "10:00:60"},
		{"1:2:3:4", "0"},
		{"x", "0"},
		{"1", ""},
		{"1:-5", "0"},
	}
	for _, c := range cases {
		if _, _, err := ParseTarget(c[0], c[1]); err == nil {
			t.Errorf("ParseTarget(%q, %q) accepted", c[0], c[1])
		}
	}
}

func TestParseOnOff(t *testing.T) {
	for arg, want := range map[string]bool{"on": true, "ON": true, "1": true, "true": true, "off": false, "0": false, "False": false} {
		got, err := ParseOnOff(arg)
		if err != nil || got != want {
			t.Errorf("ParseOnOff(%q) = %v, %v", arg, got, err)
		}
	}
	if _, err := ParseOnOff("maybe"); err == nil {
		t.Error("ParseOnOff accepted maybe")
	}
}

func TestSexagesimalFormat(t *testing.T) {
	if got := hms(5.51); got != " 05:30:36.00" {
		t.Errorf("hms(5.51) = %q", got)
	}
	if got := hms(-0.5); got != "-00:30:00.00" {
		t.Errorf("hms(-0.5) = %q", got)
	}
	if got := dms(-45.51); got != "-45:30:36.0" {
		t.Errorf("dms(-45.51) = %q", got)
	}
	if got := dms(89.99999); got != "+90:00:00.0" {
		t.Errorf("dms(89.99999) = %q", got)
	}
}

func newSimulatedMount(t *testing.T) *client.Mount {
	t.Helper()
	cfg := config.DefaultConfig()
	s, err := sim.New(cfg, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	simEnd, hostEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, simEnd)
		close(done)
	}()

	m := client.New()
	if err := m.Attach(hostEnd); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		<-done
		m.Close()
		s.Close()
	})
	return m
}

func TestExecute(t *testing.T) {
	m := newSimulatedMount(t)
	c := DefaultConfig()
	var out bytes.Buffer

	if err := Execute(m, c, []string{"status"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "at home") || !strings.Contains(out.String(), "axis2") {
		t.Errorf("status output:\n%s", out.String())
	}

	out.Reset()
	err := Execute(m, c, []string{"goto", "5:30", "20"}, &out)
	if !errors.Is(err, core.CeSlewErrInStandby) {
		t.Errorf("goto while disabled = %v", err)
	}
	if !strings.HasPrefix(out.String(), "goto: ") {
		t.Errorf("goto output %q", out.String())
	}

	out.Reset()
	if err := Execute(m, c, []string{"enable", "on"}, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "enable: none\n" {
		t.Errorf("enable output %q", out.String())
	}

	if err := Execute(m, c, []string{"track"}, &out); err != errUsage {
		t.Errorf("track without argument = %v", err)
	}
	if err := Execute(m, c, []string{"goto", "25", "0"}, &out); err == nil {
		t.Error("goto accepted 25h")
	}
	if err := Execute(m, c, []string{"park"}, &out); err == nil {
		t.Error("unknown command accepted")
	}
}

func TestMonitorCollects(t *testing.T) {
	m := newSimulatedMount(t)
	collector, err := monitor.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	c.PollMillis = 10

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Monitor(ctx, m, c, collector, logging.Noop()) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if st, ok := collector.Status(); ok {
			if !st.AtHome {
				t.Errorf("status = %+v", st)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("collector saw no telemetry")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return")
	}
}

func TestConnectRetryGivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := DefaultConfig()
	c.Addr = addr
	c.TimeoutMillis = 100
	c.ReconnectMillis = 300
	attempts := 0
	_, err = ConnectRetry(context.Background(), c, func(error, time.Duration) { attempts++ })
	if err == nil {
		t.Fatal("connected to a closed port")
	}
	if attempts == 0 {
		t.Error("no failure reported")
	}
}
