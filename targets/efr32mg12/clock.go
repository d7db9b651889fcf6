//go:build efr32mg12

package main

import "smntmb/core"

// HFRCO band used by the pipeline; TIMER0 runs undivided from it.
const hfClockHz = 38000000

// InitClock switches HFRCO to 38 MHz, enables the peripheral clocks and
// starts the cycle counter that stamps pipeline events.
func InitClock() {
	// Tuning for the 38 MHz band comes from the device information page.
	cmuHFRCOCTRL.Set(cmuHFRCOCAL38M.Get())

	cmuHFBUSCLKEN0.SetBits(cmuBusClkLDMA | cmuBusClkGPIO | cmuBusClkPRS)
	cmuHFPERCLKEN0.SetBits(cmuPerClkTimer0 | cmuPerClkUSART0 | cmuPerClkADC0)

	demCR.SetBits(1 << 24) // TRCENA
	dwtCYCCNT.Set(0)
	dwtCTRL.SetBits(1)

	core.SetClockFreq(hfClockHz)
	core.SetEventClock(GetHardwareTime)
}

// GetHardwareTime reads the free-running core cycle counter.
func GetHardwareTime() uint32 {
	return dwtCYCCNT.Get()
}

// delayMs busy-waits on the cycle counter.
func delayMs(ms uint32) {
	for ; ms > 0; ms-- {
		start := GetHardwareTime()
		for GetHardwareTime()-start < hfClockHz/1000 {
		}
	}
}
