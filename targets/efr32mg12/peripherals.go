//go:build efr32mg12

package main

import (
	"errors"

	"smntmb/core"
)

// Microphone board pins
const (
	micPowerPort = portB // PB12, active low
	micPowerPin  = 12
	micBiasPort  = portF // PF4
	micBiasPin   = 4
	usartTxPort  = portA // PA0, USART0 TX location 0
	usartTxPin   = 0
)

const gpioModePushPull = 0x4

func pinOutput(port uint8, pin uint8, high bool) {
	p := gpioP(port)
	if high {
		p.DOUT.SetBits(1 << pin)
	} else {
		p.DOUT.ClearBits(1 << pin)
	}
	shift := uint32(pin%8) * 4
	mode := &p.MODEL
	if pin >= 8 {
		mode = &p.MODEH
	}
	mode.Set(mode.Get()&^(0xF<<shift) | gpioModePushPull<<shift)
}

// BoardPowerUp powers the microphone and waits for it to settle.
func BoardPowerUp() {
	pinOutput(micPowerPort, micPowerPin, false)
	delayMs(2000)
	pinOutput(micBiasPort, micBiasPin, true)
	delayMs(2000)
}

var errScanConfig = errors.New("adc: data valid level out of range")

// EFRAdcDriver runs ADC0 in PRS-triggered scan mode.
type EFRAdcDriver struct{}

func NewEFRAdcDriver() *EFRAdcDriver {
	return &EFRAdcDriver{}
}

// InitScan routes TIMER0 overflow through PRS to one scan conversion of
// the microphone input per trigger.
func (a *EFRAdcDriver) InitScan(cfg core.ScanConfig) error {
	if cfg.DataValid < 1 || cfg.DataValid > 4 {
		return errScanConfig
	}
	prsChCTRL(cfg.PRSChannel).Set(prsSourceTimer0Overflow)

	adcCMD.Set(adcCmdScanStop)
	// 38 MHz / 4 keeps the ADC clock under its 16 MHz limit.
	adcCTRL.Set(3<<adcCtrlPrescPos | 38<<adcCtrlTimebasePos)
	adcSCANMASK.Set(1)
	adcSCANINPUTSEL.Set(adcMicScanInput)
	adcSCANCTRL.Set(adcScanCtrlRes12 | adcScanCtrlRefVDD)

	x := uint32(cfg.DataValid-1)<<adcScanCtrlXDVLPos |
		uint32(cfg.PRSChannel)<<adcScanCtrlXPRSPos |
		adcScanCtrlXPRSEn
	if cfg.FIFOOverwrite {
		x |= adcScanCtrlXFIFOOF
	}
	adcSCANCTRLX.Set(x)
	a.ClearFIFO()
	return nil
}

func (a *EFRAdcDriver) ScanDataAddress() uint32 {
	return adcSCANDATA
}

func (a *EFRAdcDriver) ClearFIFO() {
	adcSCANFIFOCLEAR.Set(1)
}

// EFRTimerDriver is TIMER0, clocked from HFPERCLK without prescaling.
type EFRTimerDriver struct{}

func NewEFRTimerDriver() *EFRTimerDriver {
	timerCTRL.Set(0) // up-count, prescale 1
	return &EFRTimerDriver{}
}

func (t *EFRTimerDriver) ClockFreq() uint32 {
	return hfClockHz
}

func (t *EFRTimerDriver) SetTop(top uint32) {
	timerTOP.Set(top)
	timerCNT.Set(0)
}

func (t *EFRTimerDriver) Enable(on bool) {
	if on {
		timerCMD.Set(timerCmdStart)
	} else {
		timerCMD.Set(timerCmdStop)
	}
}

// Serial link to the host
const serialBaud = 115200

// EFRUsartDriver is USART0 in asynchronous 8N1 mode, TX only.
type EFRUsartDriver struct{}

func NewEFRUsartDriver(baud uint32) *EFRUsartDriver {
	usartCMD.Set(usartCmdClearTx)
	usartCTRL.Set(0) // async, 16x oversampling
	usartFRAME.Set(usartFrame8N1)
	// CLKDIV = 256 * (fHFPER / (16 * baud) - 1), in 1/256 steps
	div := (uint64(hfClockHz)*16/uint64(baud) - 256) &^ 0x7
	usartCLKDIV.Set(uint32(div))
	usartROUTELOC0.Set(usartTxLocation0)
	usartROUTEPEN.Set(usartRouteTxPen)
	pinOutput(usartTxPort, usartTxPin, true)
	usartCMD.Set(usartCmdTxEn)
	return &EFRUsartDriver{}
}

func (u *EFRUsartDriver) TxDoubleAddress() uint32 {
	return usartTXDOUBLE
}
