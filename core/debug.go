package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event types captured in the servo event ring
const (
	EvtBind     = 1
	EvtEnable   = 2
	EvtDisable  = 3
	EvtCompare  = 4
	EvtRelease  = 5
	EvtTopApply = 6
)

// ServoEvent captures one state change for post-mortem analysis
type ServoEvent struct {
	EventType uint8
	Timer     TimerID
	Channel   Channel
	Value     uint16
}

const EventRingSize = 16

var (
	// debugPrintln is the platform debug output, no-op by default
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; the event ring is always recorded
	debugEnabled bool

	eventRing     [EventRingSize]ServoEvent
	eventRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
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

// recordEvent stores an event in the ring, overwriting the oldest
func recordEvent(eventType uint8, timer TimerID, ch Channel, value uint16) {
	idx := eventRingHead
	eventRing[idx] = ServoEvent{
		EventType: eventType,
		Timer:     timer,
		Channel:   ch,
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// RecentEvents returns the recorded events, oldest first
func RecentEvents() []ServoEvent {
	var out []ServoEvent
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// ResetEvents clears the event ring
func ResetEvents() {
	eventRing = [EventRingSize]ServoEvent{}
	eventRingHead = 0
}

// DumpEvents writes the event ring through the debug writer
func DumpEvents() {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] === Servo Event Dump ===")
	for _, evt := range RecentEvents() {
		var name string
		switch evt.EventType {
		case EvtBind:
			name = "BIND"
		case EvtEnable:
			name = "ENABLE"
		case EvtDisable:
			name = "DISABLE"
		case EvtCompare:
			name = "COMPARE"
		case EvtRelease:
			name = "RELEASE"
		case EvtTopApply:
			name = "TOP"
		default:
			name = "UNKNOWN"
		}
		debugPrintln("[EVENTS] " + name + " " + evt.Timer.String() + evt.Channel.String() +
			" value=" + utoa(uint32(evt.Value)))
	}
}

// DumpTimers writes the registers of every running timer through the debug
// writer. Stopped timers are skipped.
func DumpTimers(port *TC16Port) {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	debugPrintln("[TIMERS] === Timer Register Dump ===")
	for _, id := range Timers {
		r, err := port.Dump(id)
		if err != nil {
			debugPrintln("[TIMERS] " + id.String() + ": " + err.Error())
			continue
		}
		if r.TCCRB&csMask == 0 {
			continue
		}
		debugPrintln("[TIMERS] " + r.String())
	}
}
