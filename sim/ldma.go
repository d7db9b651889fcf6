package sim

import (
	"errors"

	"smntmb/core"
)

var ErrRelativeStart = errors.New("sim: first descriptor cannot use relative source addressing")

type channel struct {
	enabled   bool
	cfg       core.TransferConfig
	chain     core.Chain
	idx       int
	remaining int
	src, dst  uint32
	loop      uint8
}

// LDMA executes descriptor chains against Memory. Interrupts are delivered
// synchronously to the handler installed with SetIRQHandler, the way the
// NVIC would preempt the running code.
type LDMA struct {
	mem *Memory
	ch  [core.NumDMAChannels]channel

	flags  uint32 // IF
	enable uint32 // IEN

	irq   func()
	inIRQ bool

	// Units counts half-words moved per channel.
	Units [core.NumDMAChannels]uint64
	// LastFault keeps the bus error that raised the error flag.
	LastFault error
}

// NewLDMA creates a controller on mem.
func NewLDMA(mem *Memory) *LDMA {
	return &LDMA{mem: mem}
}

// SetIRQHandler installs the LDMA interrupt handler.
func (d *LDMA) SetIRQHandler(fn func()) {
	d.irq = fn
}

func (d *LDMA) Init() {
	for i := range d.ch {
		d.ch[i] = channel{}
	}
	d.flags = 0
	d.enable = core.LDMAIntError
	d.LastFault = nil
}

func (d *LDMA) StartTransfer(ch uint8, cfg core.TransferConfig, chain core.Chain) error {
	if int(ch) >= len(d.ch) {
		return errors.New("sim: no such LDMA channel")
	}
	if err := chain.Validate(); err != nil {
		return err
	}
	if chain[0].SrcMode == core.AddrRel || chain[0].DstMode == core.AddrRel {
		return ErrRelativeStart
	}
	c := &d.ch[ch]
	*c = channel{
		enabled: true,
		cfg:     cfg,
		chain:   append(core.Chain(nil), chain...),
		loop:    cfg.LoopCount,
	}
	c.load(0)
	return nil
}

func (c *channel) load(i int) {
	desc := &c.chain[i]
	c.idx = i
	if desc.SrcMode == core.AddrAbs {
		c.src = desc.Src
	} else {
		c.src += desc.Src
	}
	if desc.DstMode == core.AddrAbs {
		c.dst = desc.Dst
	} else {
		c.dst += desc.Dst
	}
	c.remaining = desc.Units()
}

func (d *LDMA) StopTransfer(mask uint32) {
	for i := range d.ch {
		if mask&core.ChannelMask(uint8(i)) != 0 {
			d.ch[i].enabled = false
		}
	}
}

func (d *LDMA) IntEnable(mask uint32) {
	d.enable |= mask
	d.dispatch()
}

func (d *LDMA) IntDisable(mask uint32) {
	d.enable &^= mask
}

func (d *LDMA) IntGetEnabled() uint32 {
	return d.flags & d.enable
}

func (d *LDMA) IntClear(mask uint32) {
	d.flags &^= mask
}

func (d *LDMA) AddressOf(buf []uint16) uint32 {
	return d.mem.Map(buf)
}

// Active reports whether a channel paced by sig is running.
func (d *LDMA) Active(sig core.PeripheralSignal) bool {
	for i := range d.ch {
		if d.ch[i].enabled && d.ch[i].cfg.Signal == sig {
			return true
		}
	}
	return false
}

// Enabled reports whether channel ch is running.
func (d *LDMA) Enabled(ch uint8) bool {
	return d.ch[ch].enabled
}

// LoopCount returns the remaining loop count of a channel.
func (d *LDMA) LoopCount(ch uint8) uint8 {
	return d.ch[ch].loop
}

// Request asserts a peripheral request: every channel paced by sig moves
// one block.
func (d *LDMA) Request(sig core.PeripheralSignal) {
	for i := range d.ch {
		c := &d.ch[i]
		if c.enabled && c.cfg.Signal == sig {
			d.service(uint8(i))
		}
	}
	d.dispatch()
}

// InjectError raises the engine-wide error flag.
func (d *LDMA) InjectError() {
	d.flags |= core.LDMAIntError
	d.dispatch()
}

func (d *LDMA) service(ch uint8) {
	c := &d.ch[ch]
	desc := &c.chain[c.idx]

	n := desc.BlockSize.Units()
	if n == 0 || desc.ReqMode == core.ReqAll || n > c.remaining {
		n = c.remaining
	}
	srcStep := desc.SrcInc.Step(desc.Size)
	dstStep := desc.DstInc.Step(desc.Size)
	for k := 0; k < n; k++ {
		v, err := d.mem.Read16(c.src)
		if err == nil && desc.ByteSwap {
			v = core.SwapBytes(v)
		}
		if err == nil {
			err = d.mem.Write16(c.dst, v)
		}
		if err != nil {
			c.enabled = false
			d.LastFault = err
			d.flags |= core.LDMAIntError
			return
		}
		c.src += srcStep
		c.dst += dstStep
		d.Units[ch]++
	}
	c.remaining -= n
	if c.remaining == 0 {
		d.complete(ch)
	}
}

func (d *LDMA) complete(ch uint8) {
	c := &d.ch[ch]
	desc := c.chain[c.idx]
	raise := desc.DoneIFS

	switch {
	case desc.DecLoopCount && c.loop > 0:
		c.loop--
		c.load(desc.Next)
	case desc.Link:
		c.load(desc.Next)
	default:
		// end of chain always signals the channel
		c.enabled = false
		raise = true
	}
	if raise {
		d.flags |= core.ChannelMask(ch)
	}
}

func (d *LDMA) dispatch() {
	if d.inIRQ || d.irq == nil {
		return
	}
	for {
		pending := d.IntGetEnabled()
		if pending == 0 {
			return
		}
		d.inIRQ = true
		d.irq()
		d.inIRQ = false
		if d.IntGetEnabled() == pending {
			// handler left the flags as they were; a real core would
			// re-enter forever
			return
		}
	}
}
