package core

import (
	"errors"
	"sync/atomic"
)

// ErrTransferFault is latched when the LDMA reports an engine-wide error.
var ErrTransferFault = errors.New("ldma: transfer engine error")

// FaultPolicy decides what the coordinator does after an LDMA error.
type FaultPolicy uint8

const (
	// FaultReport stops all channels and surfaces ErrTransferFault.
	FaultReport FaultPolicy = iota
	// FaultHalt does the same and then never returns from the interrupt,
	// leaving the hardware state intact for a debugger.
	FaultHalt
)

// ChannelHandler is dispatched once per cleared channel flag.
type ChannelHandler func()

// Coordinator owns the single LDMA interrupt line and fans it out to the
// capture and transmit engines.
type Coordinator struct {
	dma      DMAController
	handlers [NumDMAChannels]ChannelHandler
	policy   FaultPolicy
	onFault  func(error)
	halt     func()

	faulted uint32 // atomic
	IRQs    uint32
}

// NewCoordinator creates a coordinator for dma with the given fault policy.
func NewCoordinator(dma DMAController, policy FaultPolicy) *Coordinator {
	return &Coordinator{
		dma:    dma,
		policy: policy,
		halt: func() {
			for {
			}
		},
	}
}

// Register attaches a handler to a channel.
func (c *Coordinator) Register(ch uint8, h ChannelHandler) {
	if int(ch) < len(c.handlers) {
		c.handlers[ch] = h
	}
}

// SetFaultHandler sets the hook invoked once when a fault is latched.
func (c *Coordinator) SetFaultHandler(fn func(error)) {
	c.onFault = fn
}

// SetHaltHandler replaces the spin loop run under FaultHalt. Hosted
// builds use it to park the board instead of hanging the process.
func (c *Coordinator) SetHaltHandler(fn func()) {
	if fn != nil {
		c.halt = fn
	}
}

// Policy returns the fault policy the coordinator was built with.
func (c *Coordinator) Policy() FaultPolicy { return c.policy }

// HandleIRQ is the LDMA interrupt entry point.
func (c *Coordinator) HandleIRQ() {
	c.IRQs++
	pending := c.dma.IntGetEnabled()

	if pending&LDMAIntError != 0 {
		c.fault()
		return
	}

	for ch, h := range c.handlers {
		mask := ChannelMask(uint8(ch))
		if pending&mask == 0 || h == nil {
			continue
		}
		// Clear only this channel's flag before dispatching.
		c.dma.IntClear(mask)
		h()
	}
}

func (c *Coordinator) fault() {
	if !atomic.CompareAndSwapUint32(&c.faulted, 0, 1) {
		return
	}
	var all uint32
	for ch, h := range c.handlers {
		if h != nil {
			all |= ChannelMask(uint8(ch))
		}
	}
	c.dma.IntDisable(all | LDMAIntError)
	c.dma.StopTransfer(all)
	RecordEvent(EvtFault, 0, all, 0)
	DebugPrintln("[LDMA] engine error, channels stopped")

	if c.onFault != nil {
		c.onFault(ErrTransferFault)
	}
	if c.policy == FaultHalt {
		DumpEventRing()
		c.halt()
	}
}

// Faulted reports whether an engine error has been latched.
func (c *Coordinator) Faulted() bool {
	return atomic.LoadUint32(&c.faulted) != 0
}

// Reset clears a latched fault and re-enables the error interrupt.
func (c *Coordinator) Reset() {
	atomic.StoreUint32(&c.faulted, 0)
	c.dma.IntClear(LDMAIntError)
	c.dma.IntEnable(LDMAIntError)
}
