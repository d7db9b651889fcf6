package sim

import (
	"errors"

	"smntmb/core"
)

// ADCFIFODepth is the scan FIFO depth of ADC0.
const ADCFIFODepth = 4

// ADC models ADC0 in scan mode: each PRS trigger converts one sample into
// the scan FIFO; reaching the data-valid level requests the LDMA.
type ADC struct {
	dma *LDMA

	fifo      [ADCFIFODepth]uint16
	count     int
	dvl       int
	overwrite bool
	scanning  bool

	// Next produces the next conversion result.
	Next func() uint16

	Conversions uint64
	Overflows   uint64
	Underflows  uint64
}

// NewADC creates ADC0 wired to dma.
func NewADC(dma *LDMA) *ADC {
	return &ADC{dma: dma, Next: Ramp()}
}

// Ramp returns a 12-bit sawtooth generator starting at 0.
func Ramp() func() uint16 {
	var n uint16
	return func() uint16 {
		v := n & 0xFFF
		n++
		return v
	}
}

func (a *ADC) InitScan(cfg core.ScanConfig) error {
	if cfg.DataValid < 1 || cfg.DataValid > ADCFIFODepth {
		return errors.New("sim: scan DVL out of range")
	}
	a.dvl = cfg.DataValid
	a.overwrite = cfg.FIFOOverwrite
	a.scanning = true
	a.ClearFIFO()
	return nil
}

func (a *ADC) ScanDataAddress() uint32 {
	return ADC0ScanData
}

func (a *ADC) ClearFIFO() {
	a.count = 0
}

// Trigger performs one conversion, as a PRS pulse from TIMER0 would.
func (a *ADC) Trigger() {
	if !a.scanning {
		return
	}
	v := a.Next() & 0xFFF
	a.Conversions++
	if a.count == ADCFIFODepth {
		a.Overflows++
		if !a.overwrite {
			return
		}
		copy(a.fifo[:], a.fifo[1:])
		a.count--
	}
	a.fifo[a.count] = v
	a.count++
	if a.count >= a.dvl {
		a.dma.Request(core.SignalADC0Scan)
	}
}

// Read16 pops the scan FIFO (SCANDATA register).
func (a *ADC) Read16() uint16 {
	if a.count == 0 {
		a.Underflows++
		return 0
	}
	v := a.fifo[0]
	copy(a.fifo[:], a.fifo[1:a.count])
	a.count--
	return v
}

func (a *ADC) Write16(uint16) {}

// Pending returns the number of samples in the FIFO.
func (a *ADC) Pending() int { return a.count }

// Timer models TIMER0 with its overflow routed to ADC0 through PRS.
type Timer struct {
	adc     *ADC
	freq    uint32
	top     uint32
	enabled bool

	Overflows uint64
}

// NewTimer creates TIMER0 clocked at freq Hz.
func NewTimer(adc *ADC, freq uint32) *Timer {
	return &Timer{adc: adc, freq: freq}
}

func (t *Timer) ClockFreq() uint32 { return t.freq }

func (t *Timer) SetTop(top uint32) { t.top = top }

func (t *Timer) Enable(on bool) { t.enabled = on }

func (t *Timer) Enabled() bool { return t.enabled }

func (t *Timer) Top() uint32 { return t.top }

// Tick advances the timer by one full period.
func (t *Timer) Tick() {
	if !t.enabled {
		return
	}
	t.Overflows++
	t.adc.Trigger()
}

// USART models USART0 transmit. A TXDOUBLE write sends bits 7:0 first.
type USART struct {
	dma *LDMA
	out []byte

	Writes uint64
}

// NewUSART creates USART0 wired to dma.
func NewUSART(dma *LDMA) *USART {
	return &USART{dma: dma}
}

func (u *USART) TxDoubleAddress() uint32 {
	return USART0TxDouble
}

func (u *USART) Read16() uint16 { return 0 }

func (u *USART) Write16(v uint16) {
	u.out = append(u.out, byte(v), byte(v>>8))
	u.Writes++
}

// Pump shifts out up to units half-words, requesting the LDMA each time
// the TX buffer has room.
func (u *USART) Pump(units int) {
	for i := 0; i < units; i++ {
		if !u.dma.Active(core.SignalUSART0TXBL) {
			return
		}
		u.dma.Request(core.SignalUSART0TXBL)
	}
}

// Output returns everything transmitted so far.
func (u *USART) Output() []byte { return u.out }

// TakeOutput returns and clears the transmitted bytes.
func (u *USART) TakeOutput() []byte {
	out := u.out
	u.out = nil
	return out
}
