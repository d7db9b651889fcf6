// Microphone capture engine
// ADC scan conversions are triggered by TIMER0 through PRS and moved into two
// ping-pong buffers by a ring of linked LDMA descriptors. The CPU only sees
// one interrupt per filled buffer.
package core

import (
	"errors"
	"fmt"
)

// BufferID names one of the two ping-pong sample buffers.
type BufferID uint8

const (
	Buffer1 BufferID = 0
	Buffer2 BufferID = 1
)

// Other returns the opposite buffer.
func (b BufferID) Other() BufferID {
	return b ^ 1
}

func (b BufferID) String() string {
	if b == Buffer1 {
		return "buffer_1"
	}
	return "buffer_2"
}

// CaptureConfig holds the acquisition parameters.
type CaptureConfig struct {
	SamplesPerBatch int    // samples per buffer; multiple of MaxTransfers
	MaxTransfers    int    // units per descriptor
	SampleRate      uint32 // Hz
	ScanDVL         int    // ADC FIFO data-valid level, also the DMA block size
	PRSChannel      uint8
}

// Defaults match the smnt-mb microphone setup: 5 * 2048 samples at 2 kHz.
const (
	DefaultSamplesPerBatch = 10240
	DefaultSampleRate      = 2000
	DefaultScanDVL         = 4
)

// DefaultCaptureConfig returns the board's standard acquisition setup.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SamplesPerBatch: DefaultSamplesPerBatch,
		MaxTransfers:    MaxTransferUnits,
		SampleRate:      DefaultSampleRate,
		ScanDVL:         DefaultScanDVL,
		PRSChannel:      0,
	}
}

var (
	ErrCaptureConfig  = errors.New("capture: invalid configuration")
	ErrNotInitialized = errors.New("capture: engine not initialized")
)

// Validate checks the descriptor arithmetic constraints.
func (c CaptureConfig) Validate() error {
	if c.MaxTransfers <= 0 || c.MaxTransfers > MaxTransferUnits {
		return fmt.Errorf("%w: max transfers %d not in 1..%d", ErrCaptureConfig, c.MaxTransfers, MaxTransferUnits)
	}
	if c.SamplesPerBatch <= 0 || c.SamplesPerBatch%c.MaxTransfers != 0 {
		return fmt.Errorf("%w: %d samples is not a multiple of %d", ErrCaptureConfig, c.SamplesPerBatch, c.MaxTransfers)
	}
	if c.ScanDVL < 1 || c.ScanDVL > 4 {
		return fmt.Errorf("%w: scan DVL %d not in 1..4", ErrCaptureConfig, c.ScanDVL)
	}
	if c.MaxTransfers%c.ScanDVL != 0 {
		return fmt.Errorf("%w: %d transfers do not split into blocks of %d", ErrCaptureConfig, c.MaxTransfers, c.ScanDVL)
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrCaptureConfig)
	}
	return nil
}

// DescriptorsPerBuffer is the sub-chain length covering one buffer.
func (c CaptureConfig) DescriptorsPerBuffer() int {
	return c.SamplesPerBatch / c.MaxTransfers
}

// BuildCaptureRing builds the descriptor ring over both buffers. bufs holds
// the bus addresses of buffer 1 and 2, src the ADC scan data register.
// The last descriptor of each buffer raises the channel interrupt and the
// final descriptor links back to the first.
func BuildCaptureRing(bufs [2]uint32, src uint32, cfg CaptureConfig) (Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	block, _ := BlockSizeFor(cfg.ScanDVL)
	perBuf := cfg.DescriptorsPerBuffer()
	total := perBuf * 2
	stride := uint32(cfg.MaxTransfers) * SizeHalf.Bytes()

	ring := make(Chain, total)
	for i := range ring {
		buf := i / perBuf
		chunk := i % perBuf
		ring[i] = Descriptor{
			XferCount:  uint16(cfg.MaxTransfers - 1),
			BlockSize:  block,
			ReqMode:    ReqBlock,
			IgnoreSReq: true, // only move data once the FIFO reached DVL
			SrcInc:     IncNone,
			DstInc:     IncOne,
			Size:       SizeHalf,
			SrcMode:    AddrAbs,
			DstMode:    AddrAbs,
			Src:        src,
			Dst:        bufs[buf] + uint32(chunk)*stride,
			DoneIFS:    chunk == perBuf-1,
			Link:       true,
			Next:       (i + 1) % total,
		}
	}
	return ring, nil
}

// CaptureFunc receives one call per filled buffer. failed is set when the
// buffer could not be recycled and capture has been stopped.
type CaptureFunc func(id BufferID, samples []uint16, failed bool)

// CaptureEngine owns the sample buffers and the capture descriptor ring.
type CaptureEngine struct {
	cfg     CaptureConfig
	channel uint8
	dma     DMAController
	source  SampleSource
	timer   *SampleTimer

	buffers [2][]uint16
	ring    Chain
	cb      CaptureFunc

	next     BufferID // buffer whose completion is expected next
	released bool     // consumer finished with the last handed-off buffer
	running  bool

	Completions uint32
}

// NewCaptureEngine allocates both sample buffers. They live as long as the engine.
func NewCaptureEngine(cfg CaptureConfig, dma DMAController, source SampleSource, timer *SampleTimer) *CaptureEngine {
	e := &CaptureEngine{
		cfg:      cfg,
		channel:  MicDMAChannel,
		dma:      dma,
		source:   source,
		timer:    timer,
		released: true,
	}
	if cfg.SamplesPerBatch > 0 {
		e.buffers[Buffer1] = make([]uint16, cfg.SamplesPerBatch)
		e.buffers[Buffer2] = make([]uint16, cfg.SamplesPerBatch)
	}
	return e
}

// Init configures the scan source and gating timer and builds the ring.
func (e *CaptureEngine) Init() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	err := e.source.InitScan(ScanConfig{
		PRSChannel:    e.cfg.PRSChannel,
		DataValid:     e.cfg.ScanDVL,
		FIFOOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("capture: scan setup: %w", err)
	}
	if err := e.timer.Configure(); err != nil {
		return err
	}
	bufs := [2]uint32{
		e.dma.AddressOf(e.buffers[Buffer1]),
		e.dma.AddressOf(e.buffers[Buffer2]),
	}
	ring, err := BuildCaptureRing(bufs, e.source.ScanDataAddress(), e.cfg)
	if err != nil {
		return err
	}
	e.ring = ring
	return nil
}

// Start arms the descriptor ring and then the gating timer.
func (e *CaptureEngine) Start(cb CaptureFunc) error {
	if e.ring == nil {
		return ErrNotInitialized
	}
	e.cb = cb
	if e.running {
		return nil
	}
	e.next = Buffer1
	e.released = true
	e.source.ClearFIFO()

	mask := ChannelMask(e.channel)
	e.dma.IntClear(mask)
	e.dma.IntEnable(mask)
	if err := e.dma.StartTransfer(e.channel, TransferConfig{Signal: SignalADC0Scan}, e.ring); err != nil {
		e.dma.IntDisable(mask)
		return fmt.Errorf("capture: %w", err)
	}
	e.running = true
	e.timer.Enable(true)
	RecordEvent(EvtCaptureStart, 0, uint32(len(e.ring)), e.timer.Top())
	return nil
}

// Release tells the engine the consumer is done with the last buffer it
// was handed, so the next completion may be recycled.
func (e *CaptureEngine) Release() {
	e.released = true
}

// HandleDone runs in interrupt context when a buffer's sub-chain completes.
// The ring has already moved on to the other buffer.
func (e *CaptureEngine) HandleDone() {
	if !e.running {
		return
	}
	id := e.next
	e.Completions++
	RecordEvent(EvtCaptureDone, uint8(id), e.Completions, boolWord(e.released))

	if !e.released {
		// The buffer the ring is now writing has not been given back.
		e.Stop()
		if e.cb != nil {
			e.cb(id, e.buffers[id], true)
		}
		return
	}
	e.next = id.Other()
	e.released = false
	if e.cb != nil {
		e.cb(id, e.buffers[id], false)
	}
}

// Stop disables the gating timer before tearing down the channel so no
// trigger lands on a dead channel.
func (e *CaptureEngine) Stop() {
	e.timer.Enable(false)
	mask := ChannelMask(e.channel)
	e.dma.IntDisable(mask)
	e.dma.StopTransfer(mask)
	if e.running {
		RecordEvent(EvtCaptureStop, uint8(e.next), e.Completions, 0)
	}
	e.running = false
}

// Buffer returns the sample storage of a buffer.
func (e *CaptureEngine) Buffer(id BufferID) []uint16 {
	return e.buffers[id&1]
}

// Ring returns the descriptor ring built by Init.
func (e *CaptureEngine) Ring() Chain {
	return e.ring
}

func (e *CaptureEngine) Running() bool { return e.running }

// WriteTarget returns the buffer the ring is currently filling.
func (e *CaptureEngine) WriteTarget() BufferID { return e.next }

func (e *CaptureEngine) Config() CaptureConfig { return e.cfg }

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
