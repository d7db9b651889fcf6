//go:build efr32mg12

package main

import (
	"runtime/volatile"
	"unsafe"
)

// EFR32MG12 peripheral memory map
const (
	adc0Base   = 0x40002000
	gpioBase   = 0x4000A000
	usart0Base = 0x40010000
	timer0Base = 0x40018000
	ldmaBase   = 0x400E2000
	cmuBase    = 0x400E4000
	prsBase    = 0x400E6000
)

// NVIC interrupt number of the LDMA line
const irqLDMA = 9

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// LDMA
var (
	ldmaCTRL     = reg(ldmaBase + 0x000)
	ldmaCHEN     = reg(ldmaBase + 0x020)
	ldmaCHBUSY   = reg(ldmaBase + 0x024)
	ldmaREQDIS   = reg(ldmaBase + 0x034)
	ldmaLINKLOAD = reg(ldmaBase + 0x03C)
	ldmaREQCLEAR = reg(ldmaBase + 0x040)
	ldmaIF       = reg(ldmaBase + 0x060)
	ldmaIFC      = reg(ldmaBase + 0x068)
	ldmaIEN      = reg(ldmaBase + 0x06C)
)

// ldmaChannel is one channel register block.
type ldmaChannel struct {
	REQSEL volatile.Register32
	CFG    volatile.Register32
	LOOP   volatile.Register32
	CTRL   volatile.Register32
	SRC    volatile.Register32
	DST    volatile.Register32
	LINK   volatile.Register32
	_      [5]uint32
}

func ldmaCh(ch uint8) *ldmaChannel {
	return (*ldmaChannel)(unsafe.Pointer(uintptr(ldmaBase + 0x080 + uintptr(ch)*0x30)))
}

// REQSEL source and signal selects
const (
	ldmaSourceADC0   = 0x08 << 16
	ldmaSourceUSART0 = 0x10 << 16
	ldmaSigADC0Scan  = 1
	ldmaSigUSART0TXB = 1
)

// ADC0
var (
	adcCTRL          = reg(adc0Base + 0x000)
	adcCMD           = reg(adc0Base + 0x008)
	adcSCANCTRL      = reg(adc0Base + 0x018)
	adcSCANCTRLX     = reg(adc0Base + 0x01C)
	adcSCANMASK      = reg(adc0Base + 0x020)
	adcSCANINPUTSEL  = reg(adc0Base + 0x024)
	adcSCANFIFOCLEAR = reg(adc0Base + 0x0A0)
)

const (
	adcSCANDATA = adc0Base + 0x04C

	adcCmdScanStart = 1 << 2
	adcCmdScanStop  = 1 << 3

	adcScanCtrlRes12   = 0 << 16
	adcScanCtrlRefVDD  = 2 << 21
	adcScanCtrlXPRSEn  = 1 << 0
	adcScanCtrlXPRSPos = 8
	adcScanCtrlXDVLPos = 12
	adcScanCtrlXFIFOOF = 1 << 17
	adcCtrlPrescPos    = 8
	adcCtrlTimebasePos = 16
	adcMicScanInput    = 0x0 // APORT1X CH0, microphone output
)

// TIMER0
var (
	timerCTRL = reg(timer0Base + 0x000)
	timerCMD  = reg(timer0Base + 0x004)
	timerTOP  = reg(timer0Base + 0x01C)
	timerCNT  = reg(timer0Base + 0x024)
)

const (
	timerCmdStart = 1 << 0
	timerCmdStop  = 1 << 1
)

// PRS
const prsSourceTimer0Overflow = 0x1C<<8 | 1

func prsChCTRL(ch uint8) *volatile.Register32 {
	return reg(prsBase + 0x050 + uintptr(ch)*4)
}

// USART0
var (
	usartCTRL      = reg(usart0Base + 0x000)
	usartFRAME     = reg(usart0Base + 0x004)
	usartCMD       = reg(usart0Base + 0x00C)
	usartCLKDIV    = reg(usart0Base + 0x014)
	usartROUTEPEN  = reg(usart0Base + 0x074)
	usartROUTELOC0 = reg(usart0Base + 0x078)
)

const (
	usartTXDOUBLE = usart0Base + 0x03C

	usartCmdTxEn     = 1 << 2
	usartCmdClearTx  = 1 << 11
	usartFrame8N1    = 0x5 | 1<<12
	usartRouteTxPen  = 1 << 1
	usartTxLocation0 = 0 << 8
)

// CMU
var (
	cmuHFRCOCTRL   = reg(cmuBase + 0x010)
	cmuHFBUSCLKEN0 = reg(cmuBase + 0x0B0)
	cmuHFPERCLKEN0 = reg(cmuBase + 0x0C0)
	cmuHFRCOCAL38M = reg(0x0FE081DC) // device information page
)

const (
	cmuBusClkLDMA = 1 << 3
	cmuBusClkGPIO = 1 << 2
	cmuBusClkPRS  = 1 << 1

	cmuPerClkTimer0 = 1 << 0
	cmuPerClkUSART0 = 1 << 3
	cmuPerClkADC0   = 1 << 10
)

// GPIO ports
const (
	portA = 0
	portB = 1
	portF = 5
)

type gpioPort struct {
	CTRL    volatile.Register32
	MODEL   volatile.Register32
	MODEH   volatile.Register32
	DOUT    volatile.Register32
	_       [2]uint32
	DOUTTGL volatile.Register32
	DIN     volatile.Register32
	_       [4]uint32
}

func gpioP(port uint8) *gpioPort {
	return (*gpioPort)(unsafe.Pointer(uintptr(gpioBase + uintptr(port)*0x30)))
}

// Cortex-M4 debug cycle counter
var (
	demCR     = reg(0xE000EDFC)
	dwtCTRL   = reg(0xE0001000)
	dwtCYCCNT = reg(0xE0001004)
)
