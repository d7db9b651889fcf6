// Capture/transmit hand-off state machine
// Pure: Step takes an event and returns the actions the pipeline must
// perform. No hardware access happens here.
package core

import "errors"

// HandoffState is the controller state.
type HandoffState uint8

const (
	StateIdle HandoffState = iota
	StateArmed
	StateBuffer1Pending
	StateBuffer2Pending
	StateOverrun
)

func (s HandoffState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateBuffer1Pending:
		return "BUFFER_1_PENDING"
	case StateBuffer2Pending:
		return "BUFFER_2_PENDING"
	case StateOverrun:
		return "OVERRUN"
	}
	return "UNKNOWN"
}

func pendingState(id BufferID) HandoffState {
	if id == Buffer1 {
		return StateBuffer1Pending
	}
	return StateBuffer2Pending
}

var (
	// ErrOverrun means a buffer filled before the previous hand-off finished.
	ErrOverrun = errors.New("handoff: consumer overrun")
	// ErrAcquisition means the capture side reported it could not keep up.
	ErrAcquisition = errors.New("handoff: acquisition error")
)

// EventKind identifies controller inputs.
type EventKind uint8

const (
	EventStartSampling EventKind = iota
	EventStopSampling
	EventCaptureComplete
	EventTransmitComplete
)

// Event is one controller input.
type Event struct {
	Kind   EventKind
	Buffer BufferID
	Error  bool
}

func StartSampling() Event { return Event{Kind: EventStartSampling} }

func StopSampling() Event { return Event{Kind: EventStopSampling} }

func CaptureComplete(id BufferID, failed bool) Event {
	return Event{Kind: EventCaptureComplete, Buffer: id, Error: failed}
}

func TransmitComplete() Event { return Event{Kind: EventTransmitComplete} }

// ActionKind identifies what the pipeline must do.
type ActionKind uint8

const (
	ActArmCapture     ActionKind = iota // start ring and timer
	ActHandOff                          // give Buffer to the transmit side
	ActReleaseCapture                   // consumer is done, capture may recycle
	ActStopCapture                      // timer off, then capture channel off
	ActStopTransmit                     // transmit channel off
)

// Action is one pipeline side effect.
type Action struct {
	Kind   ActionKind
	Buffer BufferID
}

// HandoffStats counts controller activity.
type HandoffStats struct {
	Handoffs uint32
	Overruns uint32
	Restarts uint32
}

// HandoffController tracks which buffer is being written and whether the
// previous hand-off has been consumed.
type HandoffController struct {
	state    HandoffState
	selector BufferID // buffer being written by capture
	done     bool     // previous hand-off finished
	enabled  bool     // sampling requested
	lastErr  error

	Stats HandoffStats
}

// NewHandoffController returns a controller in IDLE.
func NewHandoffController() *HandoffController {
	h := &HandoffController{}
	h.reset()
	return h
}

func (h *HandoffController) reset() {
	h.state = StateIdle
	h.selector = Buffer1
	h.done = true
	h.enabled = false
	h.lastErr = nil
}

// Step applies one event. The returned error is non-nil only on the
// transition into OVERRUN.
func (h *HandoffController) Step(ev Event) ([]Action, error) {
	switch ev.Kind {
	case EventStartSampling:
		return h.start(), nil
	case EventStopSampling:
		h.reset()
		return []Action{{Kind: ActStopCapture}, {Kind: ActStopTransmit}}, nil
	case EventCaptureComplete:
		return h.captureComplete(ev.Buffer, ev.Error)
	case EventTransmitComplete:
		return h.transmitComplete(), nil
	}
	return nil, nil
}

func (h *HandoffController) start() []Action {
	switch h.state {
	case StateIdle, StateOverrun:
	default:
		return nil
	}
	var actions []Action
	if h.state == StateOverrun {
		// Drop whatever block was still draining from the failed run.
		h.Stats.Restarts++
		actions = append(actions, Action{Kind: ActStopTransmit})
	}
	h.reset()
	h.enabled = true
	h.state = StateArmed
	return append(actions, Action{Kind: ActArmCapture})
}

func (h *HandoffController) captureComplete(id BufferID, failed bool) ([]Action, error) {
	if !h.enabled || h.state == StateOverrun || h.state == StateIdle {
		// Late completion after stop or overrun.
		return nil, nil
	}
	switch {
	case !h.done:
		return h.overrun(ErrOverrun)
	case failed:
		return h.overrun(ErrAcquisition)
	case id != h.selector:
		// The ring only completes buffers in order; anything else means
		// the capture side lost track of the buffers.
		return h.overrun(ErrAcquisition)
	}

	h.selector = id.Other()
	h.done = false
	h.state = pendingState(id)
	h.Stats.Handoffs++
	return []Action{{Kind: ActHandOff, Buffer: id}}, nil
}

func (h *HandoffController) overrun(err error) ([]Action, error) {
	h.state = StateOverrun
	h.enabled = false
	h.lastErr = err
	h.Stats.Overruns++
	return []Action{{Kind: ActStopCapture}}, err
}

func (h *HandoffController) transmitComplete() []Action {
	switch h.state {
	case StateBuffer1Pending, StateBuffer2Pending:
		h.done = true
		h.state = StateArmed
		if h.enabled {
			return []Action{{Kind: ActReleaseCapture}}
		}
	case StateOverrun:
		// The last block drained; capture stays down until restarted.
		h.done = true
	}
	return nil
}

func (h *HandoffController) State() HandoffState { return h.state }

// WriteTarget is the buffer capture is filling.
func (h *HandoffController) WriteTarget() BufferID { return h.selector }

// InFlight returns the buffer owned by the transmit side, if any.
func (h *HandoffController) InFlight() (BufferID, bool) {
	switch h.state {
	case StateBuffer1Pending:
		return Buffer1, true
	case StateBuffer2Pending:
		return Buffer2, true
	}
	return 0, false
}

// HandoffDone reports whether the previous hand-off has finished.
func (h *HandoffController) HandoffDone() bool { return h.done }

// Err returns the error that moved the controller into OVERRUN.
func (h *HandoffController) Err() error { return h.lastErr }
