//go:build efr32mg12

package main

import (
	"errors"
	"runtime/interrupt"
	"unsafe"

	"smntmb/core"
)

// Descriptor storage per channel. The capture ring of the default setup
// needs 10 descriptors, the transmit loop 2.
const maxDescriptors = 16

var errChainTooLong = errors.New("ldma: chain exceeds descriptor storage")

// EFRLDMADriver implements core.DMAController on the LDMA registers.
// Descriptors live in static RAM so the engine can fetch linked entries
// while the channel runs.
type EFRLDMADriver struct {
	desc [core.NumDMAChannels][maxDescriptors * core.DescriptorWords]uint32
}

// NewEFRLDMADriver creates the LDMA driver.
func NewEFRLDMADriver() *EFRLDMADriver {
	return &EFRLDMADriver{}
}

// Init resets the engine and enables the error interrupt.
func (d *EFRLDMADriver) Init() {
	cmuHFBUSCLKEN0.SetBits(cmuBusClkLDMA)

	ldmaCHEN.Set(0)
	ldmaREQCLEAR.Set(0xFF)
	ldmaREQDIS.Set(0)
	ldmaCTRL.Set(0)
	ldmaIEN.Set(core.LDMAIntError)
	ldmaIFC.Set(0xFFFFFFFF)
}

func requestSelect(sig core.PeripheralSignal) uint32 {
	switch sig {
	case core.SignalADC0Scan:
		return ldmaSourceADC0 | ldmaSigADC0Scan
	case core.SignalUSART0TXBL:
		return ldmaSourceUSART0 | ldmaSigUSART0TXB
	}
	return 0
}

// StartTransfer encodes chain into the channel's descriptor storage and
// points the channel at its first entry.
func (d *EFRLDMADriver) StartTransfer(ch uint8, cfg core.TransferConfig, chain core.Chain) error {
	if int(ch) >= core.NumDMAChannels {
		return core.ErrBadLink
	}
	if err := chain.Validate(); err != nil {
		return err
	}
	if len(chain) > maxDescriptors {
		return errChainTooLong
	}
	words := d.desc[ch][:]
	chain.Encode(words)

	mask := core.ChannelMask(ch)
	c := ldmaCh(ch)

	state := interrupt.Disable()
	c.REQSEL.Set(requestSelect(cfg.Signal))
	c.CFG.Set(0)
	c.LOOP.Set(uint32(cfg.LoopCount))
	ldmaIFC.Set(mask)
	c.LINK.Set(uint32(uintptr(unsafe.Pointer(&words[0]))) &^ 3)
	ldmaCHEN.SetBits(mask)
	ldmaLINKLOAD.Set(mask)
	interrupt.Restore(state)
	return nil
}

// StopTransfer disables the channels in mask.
func (d *EFRLDMADriver) StopTransfer(mask uint32) {
	state := interrupt.Disable()
	ldmaCHEN.ClearBits(mask)
	for ldmaCHBUSY.Get()&mask != 0 {
	}
	interrupt.Restore(state)
}

func (d *EFRLDMADriver) IntEnable(mask uint32)  { ldmaIEN.SetBits(mask) }
func (d *EFRLDMADriver) IntDisable(mask uint32) { ldmaIEN.ClearBits(mask) }

// IntGetEnabled returns pending flags that are also enabled.
func (d *EFRLDMADriver) IntGetEnabled() uint32 {
	return ldmaIF.Get() & ldmaIEN.Get()
}

// IntClear writes IFC, which clears only the bits in mask.
func (d *EFRLDMADriver) IntClear(mask uint32) {
	ldmaIFC.Set(mask)
}

// AddressOf returns the bus address of a sample buffer.
func (d *EFRLDMADriver) AddressOf(buf []uint16) uint32 {
	if len(buf) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(&buf[0])))
}
