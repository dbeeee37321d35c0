package core

import (
	"strings"
	"testing"
)

func TestTimingRingKeepsNewest(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	for i := 0; i < TimingRingSize+3; i++ {
		RecordTiming(EvtFrequency, 1, uint32(i), 0)
	}
	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("%d events, want %d", len(events), TimingRingSize)
	}
	if events[0].Value1 != 3 || events[len(events)-1].Value1 != TimingRingSize+2 {
		t.Errorf("oldest %d newest %d", events[0].Value1, events[len(events)-1].Value1)
	}

	ClearTimingRing()
	if n := len(TimingEvents()); n != 0 {
		t.Errorf("%d events after clear", n)
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordTiming(EvtGoto, 2, 7, 9)
	RecordTiming(EvtPierFlip, 0, 0, 0)
	DumpTimingRing()

	out := strings.Join(lines, "\n")
	for _, want := range []string{"GOTO axis=2", "v1=7 v2=9", "FLIP"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump lacks %q:\n%s", want, out)
		}
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})
	defer SetDebugEnabled(false)

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	if !IsDebugEnabled() {
		t.Fatal("debug not enabled")
	}
	DebugPrintln("shown")
	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("got %q", got)
	}
}
