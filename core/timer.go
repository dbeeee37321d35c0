package core

import "sync/atomic"

// Timer frequencies
const (
	TimerFreq = 1000000 // 1MHz, the RP2040 microsecond timer

	// SubMicros is the number of period units per microsecond. Step periods
	// are carried in 1/16 us so slow rates keep their fractional part.
	SubMicros = 16
)

var systemTicks atomic.Uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime sets the current system time (hardware clock or simulator)
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return us * (TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// TimeBefore reports whether tick a comes before tick b, across counter wrap
func TimeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ProcessTimers runs every timer that is due
func ProcessTimers() {
	TimerDispatch(GetTime())
}
