package core

import (
	"errors"
	"fmt"
)

var (
	ErrTransmitSize = errors.New("transmit: block size not representable")
	ErrTransmitBusy = errors.New("transmit: previous block still in flight")
)

// MaxLoopCount is the largest LOOPCNT value.
const MaxLoopCount = 0xFF

// BuildTransmitLoop builds the memory-to-USART descriptors for units
// half-words starting at src. Blocks up to MaxTransferUnits use a single
// descriptor. Larger blocks use two: the first with an absolute source (the
// LDMA cannot start on a relative one), the second continuing relative to
// where the first stopped and repeating via the loop counter. The returned
// loop count is the number of extra passes of the second descriptor.
func BuildTransmitLoop(src, dst uint32, units int) (Chain, uint8, error) {
	if units <= 0 {
		return nil, 0, fmt.Errorf("%w: %d units", ErrTransmitSize, units)
	}
	base := Descriptor{
		ByteSwap:   true, // samples sit little-endian in RAM
		BlockSize:  BlockUnit1,
		ReqMode:    ReqBlock,
		IgnoreSReq: true,
		SrcInc:     IncOne,
		DstInc:     IncNone,
		Size:       SizeHalf,
		SrcMode:    AddrAbs,
		DstMode:    AddrAbs,
		Src:        src,
		Dst:        dst,
	}

	if units <= MaxTransferUnits {
		d := base
		d.XferCount = uint16(units - 1)
		return Chain{d}, 0, nil
	}

	if units%MaxTransferUnits != 0 {
		return nil, 0, fmt.Errorf("%w: %d is not a multiple of %d", ErrTransmitSize, units, MaxTransferUnits)
	}
	passes := units / MaxTransferUnits
	if passes-2 > MaxLoopCount {
		return nil, 0, fmt.Errorf("%w: %d passes exceed loop counter", ErrTransmitSize, passes)
	}

	first := base
	first.XferCount = MaxTransferUnits - 1
	first.Link = true
	first.Next = 1

	loop := base
	loop.XferCount = MaxTransferUnits - 1
	loop.DecLoopCount = true
	loop.SrcMode = AddrRel
	loop.Src = 0 // continue exactly where the previous pass ended
	loop.Next = 1
	loop.Link = false

	return Chain{first, loop}, uint8(passes - 2), nil
}

// TransmitFunc is called once when a whole block has been written out.
type TransmitFunc func()

// TransmitEngine streams a sample buffer to the USART without CPU work per unit.
type TransmitEngine struct {
	channel uint8
	dma     DMAController
	serial  SerialPort
	cb      TransmitFunc

	chain Chain
	busy  bool

	Blocks uint32
}

// NewTransmitEngine creates the engine; cb fires on every finished block.
func NewTransmitEngine(dma DMAController, serial SerialPort, cb TransmitFunc) *TransmitEngine {
	return &TransmitEngine{
		channel: SerialDMAChannel,
		dma:     dma,
		serial:  serial,
		cb:      cb,
	}
}

// Start rebuilds the loop anchored at buf and starts the channel.
func (t *TransmitEngine) Start(buf []uint16) error {
	if t.busy {
		return ErrTransmitBusy
	}
	chain, loops, err := BuildTransmitLoop(t.dma.AddressOf(buf), t.serial.TxDoubleAddress(), len(buf))
	if err != nil {
		return err
	}
	t.chain = chain

	mask := ChannelMask(t.channel)
	t.dma.IntClear(mask)
	t.dma.IntEnable(mask)
	t.busy = true
	err = t.dma.StartTransfer(t.channel, TransferConfig{Signal: SignalUSART0TXBL, LoopCount: loops}, t.chain)
	if err != nil {
		t.busy = false
		t.dma.IntDisable(mask)
		return fmt.Errorf("transmit: %w", err)
	}
	RecordEvent(EvtTransmitStart, 0, uint32(len(buf)), uint32(loops))
	return nil
}

// HandleDone runs in interrupt context when the last pass finished.
func (t *TransmitEngine) HandleDone() {
	if !t.busy {
		return
	}
	t.busy = false
	t.Blocks++
	RecordEvent(EvtTransmitDone, 0, t.Blocks, 0)
	if t.cb != nil {
		t.cb()
	}
}

// Stop aborts any block in flight.
func (t *TransmitEngine) Stop() {
	mask := ChannelMask(t.channel)
	t.dma.IntDisable(mask)
	t.dma.StopTransfer(mask)
	t.busy = false
}

func (t *TransmitEngine) Busy() bool { return t.busy }

// Chain returns the descriptors of the last Start.
func (t *TransmitEngine) Chain() Chain { return t.chain }
