package core

import "testing"

func resetTimers(t *testing.T) {
	t.Helper()
	timerList = nil
	SetTime(0)
	t.Cleanup(func() { timerList = nil })
}

func TestTimerDispatchOrder(t *testing.T) {
	resetTimers(t)

	var order []int
	mk := func(id int, wake uint32) *Timer {
		return &Timer{WakeTime: wake, Handler: func(*Timer) uint8 {
			order = append(order, id)
			return SF_DONE
		}}
	}
	ScheduleTimer(mk(3, 300))
	ScheduleTimer(mk(1, 100))
	ScheduleTimer(mk(2, 200))

	TimerDispatch(250)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
	if wake, ok := NextWake(); !ok || wake != 300 {
		t.Errorf("next wake = %d %v", wake, ok)
	}
	TimerDispatch(300)
	if len(order) != 3 {
		t.Errorf("timer 3 not run: %v", order)
	}
	if _, ok := NextWake(); ok {
		t.Error("list should be empty")
	}
}

func TestTimerDispatchAcrossWrap(t *testing.T) {
	resetTimers(t)

	var order []uint32
	handler := func(tm *Timer) uint8 {
		order = append(order, tm.WakeTime)
		return SF_DONE
	}
	late := &Timer{WakeTime: 0x00000008, Handler: handler}
	early := &Timer{WakeTime: 0xFFFFFFF8, Handler: handler}
	ScheduleTimer(late)
	ScheduleTimer(early)

	TimerDispatch(0x10)
	if len(order) != 2 || order[0] != 0xFFFFFFF8 || order[1] != 0x00000008 {
		t.Errorf("order = %#x", order)
	}
}

func TestScheduleTimerMovesQueuedTimer(t *testing.T) {
	resetTimers(t)

	runs := 0
	tm := &Timer{WakeTime: 100, Handler: func(*Timer) uint8 { runs++; return SF_DONE }}
	ScheduleTimer(tm)
	tm.WakeTime = 500
	ScheduleTimer(tm)

	TimerDispatch(200)
	if runs != 0 {
		t.Fatal("timer ran at its old wake time")
	}
	TimerDispatch(500)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestCancelTimer(t *testing.T) {
	resetTimers(t)

	ran := false
	tm := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { ran = true; return SF_DONE }}
	ScheduleTimer(tm)
	CancelTimer(tm)
	CancelTimer(tm)

	TimerDispatch(20)
	if ran {
		t.Error("cancelled timer ran")
	}
}

func TestTimerDispatchBounded(t *testing.T) {
	resetTimers(t)

	runs := 0
	tm := &Timer{WakeTime: 0, Handler: func(*Timer) uint8 {
		runs++
		return SF_RESCHEDULE // stays in the past
	}}
	ScheduleTimer(tm)
	TimerDispatch(1000)
	if runs != maxDispatch {
		t.Errorf("runs = %d, want %d", runs, maxDispatch)
	}
}

func TestTimeBefore(t *testing.T) {
	tests := []struct {
		a, b uint32
		want bool
	}{
		{1, 2, true},
		{2, 1, false},
		{5, 5, false},
		{0xFFFFFFFF, 0, true},
		{0, 0xFFFFFFFF, false},
	}
	for _, tt := range tests {
		if got := TimeBefore(tt.a, tt.b); got != tt.want {
			t.Errorf("TimeBefore(%#x, %#x) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
