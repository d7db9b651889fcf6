// Microphone streaming pipeline
// Wires the capture and transmit engines, the LDMA interrupt coordinator and
// the hand-off state machine onto a set of hardware ports.
package core

import (
	"errors"
	"fmt"
)

var ErrPortsMissing = errors.New("pipeline: hardware ports not configured")

// Pipeline executes HandoffController actions on the hardware engines.
// Controller state is only mutated from the LDMA interrupt or from the
// consumer with interrupts masked.
type Pipeline struct {
	cfg   CaptureConfig
	ports Ports

	coord    *Coordinator
	timer    *SampleTimer
	capture  *CaptureEngine
	transmit *TransmitEngine
	ctrl     *HandoffController

	ready   ReadyCell
	failure errLatch
}

// NewPipeline builds the engines. Call Init before StartSampling.
func NewPipeline(cfg CaptureConfig, ports Ports, policy FaultPolicy) (*Pipeline, error) {
	if !ports.complete() {
		return nil, ErrPortsMissing
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:   cfg,
		ports: ports,
		ctrl:  NewHandoffController(),
	}
	p.timer = NewSampleTimer(ports.Timer, cfg.SampleRate)
	p.capture = NewCaptureEngine(cfg, ports.DMA, ports.Source, p.timer)
	p.transmit = NewTransmitEngine(ports.DMA, ports.Serial, p.onTransmitDone)

	p.coord = NewCoordinator(ports.DMA, policy)
	p.coord.Register(MicDMAChannel, p.capture.HandleDone)
	p.coord.Register(SerialDMAChannel, p.transmit.HandleDone)
	p.coord.SetFaultHandler(p.onFault)
	return p, nil
}

// Init resets the LDMA and prepares the capture ring, scan source and timer.
func (p *Pipeline) Init() error {
	p.ports.DMA.Init()
	if err := p.capture.Init(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	DebugPrintln("[MIC] ring=" + itoa(len(p.capture.Ring())) +
		" top=" + itoa(int(p.timer.Top())) +
		" rate=" + itoa(int(p.cfg.SampleRate)) +
		" src=" + hex32(p.ports.Source.ScanDataAddress()) +
		" buf1=" + hex32(p.ports.DMA.AddressOf(p.capture.Buffer(Buffer1))))
	return nil
}

// HandleIRQ is the LDMA interrupt entry point.
func (p *Pipeline) HandleIRQ() {
	p.coord.HandleIRQ()
}

// StartSampling arms capture. Valid from IDLE and OVERRUN.
func (p *Pipeline) StartSampling() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if p.coord.Faulted() {
		return ErrTransferFault
	}
	switch p.ctrl.State() {
	case StateIdle, StateOverrun:
		p.failure.clear()
		p.ready.Reset()
	default:
		// Already running; a pending buffer stays with the consumer.
		return nil
	}
	RecordEvent(EvtStart, 0, p.ctrl.Stats.Handoffs, 0)
	return p.step(StartSampling())
}

// StopSampling is safe from any state: timer first, then both channels.
func (p *Pipeline) StopSampling() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	p.step(StopSampling())
	p.ready.Reset()
	RecordEvent(EvtStop, 0, p.ctrl.Stats.Handoffs, 0)
}

// ResetFault clears a latched LDMA fault so sampling can be restarted.
func (p *Pipeline) ResetFault() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	p.coord.Reset()
	p.failure.clear()
}

func (p *Pipeline) step(ev Event) error {
	actions, err := p.ctrl.Step(ev)
	if err != nil {
		p.failure.set(err)
		RecordEvent(EvtOverrun, uint8(ev.Buffer), p.ctrl.Stats.Overruns, boolWord(ev.Error))
		DebugPrintln("[MIC] " + err.Error() + " on " + ev.Buffer.String())
	}
	for _, a := range actions {
		if aerr := p.apply(a); aerr != nil {
			p.failure.set(aerr)
			if err == nil {
				err = aerr
			}
		}
	}
	return err
}

func (p *Pipeline) apply(a Action) error {
	switch a.Kind {
	case ActArmCapture:
		return p.capture.Start(p.onCapture)
	case ActHandOff:
		RecordEvent(EvtHandOff, uint8(a.Buffer), p.ctrl.Stats.Handoffs, 0)
		if !p.ready.Publish(a.Buffer, p.capture.Buffer(a.Buffer)) {
			// The consumer never picked up the previous buffer.
			return ErrOverrun
		}
	case ActReleaseCapture:
		p.capture.Release()
	case ActStopCapture:
		p.capture.Stop()
	case ActStopTransmit:
		p.transmit.Stop()
	}
	return nil
}

func (p *Pipeline) onCapture(id BufferID, _ []uint16, failed bool) {
	p.step(CaptureComplete(id, failed))
}

func (p *Pipeline) onTransmitDone() {
	p.step(TransmitComplete())
}

func (p *Pipeline) onFault(err error) {
	p.timer.Enable(false)
	p.step(StopSampling())
	p.failure.set(err)
}

// Err returns the latched failure of the current run, if any.
func (p *Pipeline) Err() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return p.failure.get()
}

// State returns the hand-off controller state.
func (p *Pipeline) State() HandoffState {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return p.ctrl.State()
}

// Stats returns a copy of the hand-off counters.
func (p *Pipeline) Stats() HandoffStats {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return p.ctrl.Stats
}

func (p *Pipeline) Config() CaptureConfig { return p.cfg }

func (p *Pipeline) Capture() *CaptureEngine { return p.capture }

func (p *Pipeline) Transmit() *TransmitEngine { return p.transmit }

func (p *Pipeline) Controller() *HandoffController { return p.ctrl }

func (p *Pipeline) Coordinator() *Coordinator { return p.coord }

func (p *Pipeline) Timer() *SampleTimer { return p.timer }

// errLatch keeps the first error of a run.
type errLatch struct {
	err error
}

func (l *errLatch) set(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *errLatch) get() error { return l.err }

func (l *errLatch) clear() { l.err = nil }
