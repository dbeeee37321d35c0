package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a mount event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis index, 0 for mount-wide events
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSync       = 1 // position synced
	EvtGoto       = 2 // goto started
	EvtGotoDone   = 3 // goto reached target
	EvtAbort      = 4 // slew aborted
	EvtFrequency  = 5 // axis frequency published
	EvtReseed     = 6 // sidereal reference reseeded
	EvtMicrostep  = 7 // microstep mode switched
	EvtFault      = 8 // driver fault latched
	EvtPierFlip   = 9 // goto scheduled a meridian flip
	EvtEncoderErr = 10
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer, written from command context only
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures an event in the ring buffer
func RecordTiming(eventType, axis uint8, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Axis:      axis,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

func eventName(code uint8) string {
	switch code {
	case EvtSync:
		return "SYNC"
	case EvtGoto:
		return "GOTO"
	case EvtGotoDone:
		return "GOTO_DONE"
	case EvtAbort:
		return "ABORT"
	case EvtFrequency:
		return "FREQ"
	case EvtReseed:
		return "LAST_RESEED"
	case EvtMicrostep:
		return "USTEP"
	case EvtFault:
		return "FAULT!"
	case EvtPierFlip:
		return "FLIP"
	case EvtEncoderErr:
		return "ENCODER_ERR"
	}
	return "UNKNOWN"
}

// DumpTimingRing outputs the event ring (call on shutdown/error)
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Event Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" axis=" + Utoa(uint32(evt.Axis)) +
			" clock=" + Utoa(evt.Clock) +
			" v1=" + Utoa(evt.Value1) +
			" v2=" + Utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the event buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
