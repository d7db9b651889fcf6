package sim

import "smntmb/core"

// DefaultClock is the HFPERCLK the board runs TIMER0 from.
const DefaultClock = 16000000

// Board is the simulated smnt-mb: one Tick is one sample period.
type Board struct {
	Mem   *Memory
	LDMA  *LDMA
	ADC   *ADC
	Timer *Timer
	USART *USART

	// SerialRate is how many half-words the USART shifts out per sample
	// period. Fractions accumulate across ticks.
	SerialRate float64
	serialAcc  float64

	Ticks uint64
}

// NewBoard builds the peripherals with TIMER0 clocked at clockHz.
func NewBoard(clockHz uint32) *Board {
	mem := NewMemory()
	dma := NewLDMA(mem)
	adc := NewADC(dma)
	usart := NewUSART(dma)
	mem.MapRegister(ADC0ScanData, adc)
	mem.MapRegister(USART0TxDouble, usart)
	return &Board{
		Mem:        mem,
		LDMA:       dma,
		ADC:        adc,
		Timer:      NewTimer(adc, clockHz),
		USART:      usart,
		SerialRate: 2,
	}
}

// Ports returns the board peripherals as pipeline ports.
func (b *Board) Ports() core.Ports {
	return core.Ports{
		DMA:    b.LDMA,
		Source: b.ADC,
		Serial: b.USART,
		Timer:  b.Timer,
	}
}

// Attach routes the LDMA interrupt to the pipeline and stamps pipeline
// events with the board's sample count.
func (b *Board) Attach(p *core.Pipeline) {
	b.LDMA.SetIRQHandler(p.HandleIRQ)
	core.SetClockFreq(p.Timer().Rate())
	core.SetEventClock(core.GetTime)
	core.SetTime(uint32(b.Ticks))
}

// Tick advances one sample period: one timer overflow, then serial output.
func (b *Board) Tick() {
	b.Ticks++
	core.AdvanceTime(1)
	b.Timer.Tick()
	b.serialAcc += b.SerialRate
	n := int(b.serialAcc)
	if n > 0 {
		b.serialAcc -= float64(n)
		b.USART.Pump(n)
	}
}

// Run advances n sample periods.
func (b *Board) Run(n int) {
	for i := 0; i < n; i++ {
		b.Tick()
	}
}
