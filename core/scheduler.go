package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer

	queued bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// maxDispatch bounds the handlers run by one dispatch so a timer that keeps
// rescheduling into the past cannot starve the main loop.
const maxDispatch = 256

var timerList *Timer

// ScheduleTimer adds a timer to the schedule. A timer already queued is moved.
func ScheduleTimer(t *Timer) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	if t.queued {
		removeTimer(t)
	}
	insertTimer(t)
}

// CancelTimer removes a timer from the schedule if it is queued
func CancelTimer(t *Timer) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	removeTimer(t)
}

// insertTimer inserts a timer in sorted order by WakeTime.
// Caller holds the critical section.
func insertTimer(t *Timer) {
	t.queued = true
	if timerList == nil || TimeBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !TimeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// removeTimer unlinks t. Caller holds the critical section.
func removeTimer(t *Timer) {
	if !t.queued {
		return
	}
	t.queued = false
	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			break
		}
	}
	t.Next = nil
}

// TimerDispatch runs handlers for every timer due at or before now.
// Handlers run inside the critical section and must not call
// ScheduleTimer, CancelTimer or DisableInterrupts.
func TimerDispatch(now uint32) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	for n := 0; n < maxDispatch && timerList != nil && !TimeBefore(now, timerList.WakeTime); n++ {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil
		timer.queued = false

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}

// NextWake returns the wake time of the earliest queued timer
func NextWake() (uint32, bool) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	if timerList == nil {
		return 0, false
	}
	return timerList.WakeTime, true
}
