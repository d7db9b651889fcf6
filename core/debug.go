package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// PipelineEvent captures one pipeline event for post-mortem analysis
type PipelineEvent struct {
	EventType uint8  // Event type code
	Buffer    uint8  // Buffer the event refers to
	Clock     uint32 // Event clock at the time of the event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtCaptureStart  = 1  // capture ring armed
	EvtCaptureDone   = 2  // buffer sub-chain completed
	EvtHandOff       = 3  // buffer handed to the consumer
	EvtTransmitStart = 4  // transmit loop started
	EvtTransmitDone  = 5  // transmit loop finished
	EvtOverrun       = 6  // hand-off refused
	EvtCaptureStop   = 7  // timer and capture channel stopped
	EvtFault         = 8  // LDMA engine error
	EvtStart         = 9  // StartSampling
	EvtStop          = 10 // StopSampling
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// eventClock stamps ring entries; targets install a hardware counter
	eventClock = GetTime

	eventRing     [EventRingSize]PipelineEvent
	eventRingHead uint8
	eventsEnabled bool = true

	// Async debug output channel
	debugChan chan string
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

// SetEventClock installs the clock used to stamp events.
func SetEventClock(clock func() uint32) {
	if clock != nil {
		eventClock = clock
	}
}

// SetEventsEnabled turns event capture on or off.
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message without blocking; drops it if the queue is full
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent captures an event in the ring buffer. Safe from interrupt context.
func RecordEvent(eventType, buffer uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	idx := eventRingHead
	eventRing[idx] = PipelineEvent{
		EventType: eventType,
		Buffer:    buffer,
		Clock:     eventClock(),
		Value1:    value1,
		Value2:    value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events from oldest to newest.
func Events() []PipelineEvent {
	out := make([]PipelineEvent, 0, EventRingSize)
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

func eventName(t uint8) string {
	switch t {
	case EvtCaptureStart:
		return "CAPTURE_START"
	case EvtCaptureDone:
		return "CAPTURE_DONE"
	case EvtHandOff:
		return "HANDOFF"
	case EvtTransmitStart:
		return "TX_START"
	case EvtTransmitDone:
		return "TX_DONE"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtCaptureStop:
		return "CAPTURE_STOP"
	case EvtFault:
		return "LDMA_FAULT!"
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	}
	return "UNKNOWN"
}

// DumpEventRing outputs the event ring (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + eventName(evt.EventType) +
			" buf=" + itoa(int(evt.Buffer)+1) +
			" clock=" + itoa(int(evt.Clock)) +
			" us=" + itoa(int(TicksToUS(evt.Clock))) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = PipelineEvent{}
	}
	eventRingHead = 0
}
