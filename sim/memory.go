// Package sim models the smnt-mb peripherals the microphone pipeline uses:
// LDMA, ADC0 in scan mode, TIMER0 feeding ADC0 through PRS, and USART0.
// Descriptor chains built by core run here unit by unit, so the pipeline can
// be exercised without hardware.
package sim

import (
	"errors"
	"fmt"
)

// Memory map, matching the EFR32xG12 peripheral addresses.
const (
	RAMBase = 0x20000000

	ADC0Base     = 0x40002000
	ADC0ScanData = ADC0Base + 0x04C

	USART0Base     = 0x40010000
	USART0TxDouble = USART0Base + 0x03C
)

var ErrBusFault = errors.New("sim: bus fault")

// Register16 is a half-word peripheral register.
type Register16 interface {
	Read16() uint16
	Write16(v uint16)
}

type region struct {
	base  uint32
	first *uint16
	data  []uint16
}

// Memory resolves bus addresses to sample buffers and peripheral registers.
type Memory struct {
	regions []region
	regs    map[uint32]Register16
	next    uint32
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{
		regs: make(map[uint32]Register16),
		next: RAMBase,
	}
}

// Map places buf in RAM and returns its address. Mapping the same backing
// array again returns the same address.
func (m *Memory) Map(buf []uint16) uint32 {
	if len(buf) == 0 {
		return 0
	}
	first := &buf[0]
	for _, r := range m.regions {
		if r.first == first {
			return r.base
		}
	}
	base := m.next
	m.regions = append(m.regions, region{base: base, first: first, data: buf})
	// keep regions word aligned with a guard word between them
	m.next += uint32(len(buf)*2+7) &^ 3
	return base
}

// MapRegister attaches a peripheral register at addr.
func (m *Memory) MapRegister(addr uint32, reg Register16) {
	m.regs[addr] = reg
}

func (m *Memory) locate(addr uint32) (*region, int, error) {
	if addr&1 != 0 {
		return nil, 0, fmt.Errorf("%w: unaligned half-word access at %#08x", ErrBusFault, addr)
	}
	for i := range m.regions {
		r := &m.regions[i]
		end := r.base + uint32(len(r.data))*2
		if addr >= r.base && addr < end {
			return r, int(addr-r.base) / 2, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no memory at %#08x", ErrBusFault, addr)
}

// Read16 reads a half-word.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	if reg, ok := m.regs[addr]; ok {
		return reg.Read16(), nil
	}
	r, idx, err := m.locate(addr)
	if err != nil {
		return 0, err
	}
	return r.data[idx], nil
}

// Write16 writes a half-word.
func (m *Memory) Write16(addr uint32, v uint16) error {
	if reg, ok := m.regs[addr]; ok {
		reg.Write16(v)
		return nil
	}
	r, idx, err := m.locate(addr)
	if err != nil {
		return err
	}
	r.data[idx] = v
	return nil
}
