package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smntmb/core"
)

func TestLDMATransmitLoopByteSwap(t *testing.T) {
	b := NewBoard(DefaultClock)
	b.LDMA.Init()

	buf := make([]uint16, 3*core.MaxTransferUnits)
	for i := range buf {
		buf[i] = uint16(i*7) & 0xFFF
	}
	chain, loops, err := core.BuildTransmitLoop(b.LDMA.AddressOf(buf), USART0TxDouble, len(buf))
	require.NoError(t, err)
	require.Equal(t, uint8(1), loops)

	irqs := 0
	b.LDMA.SetIRQHandler(func() {
		irqs++
		b.LDMA.IntClear(b.LDMA.IntGetEnabled())
	})
	b.LDMA.IntEnable(core.ChannelMask(core.SerialDMAChannel))
	cfg := core.TransferConfig{Signal: core.SignalUSART0TXBL, LoopCount: loops}
	require.NoError(t, b.LDMA.StartTransfer(core.SerialDMAChannel, cfg, chain))

	b.USART.Pump(len(buf) + 10)
	assert.False(t, b.LDMA.Enabled(core.SerialDMAChannel))
	assert.Equal(t, 1, irqs)
	assert.Equal(t, uint64(len(buf)), b.LDMA.Units[core.SerialDMAChannel])

	out := b.USART.Output()
	require.Len(t, out, 2*len(buf))
	for i, v := range buf {
		// high byte leaves the port first
		got := uint16(out[2*i])<<8 | uint16(out[2*i+1])
		require.Equal(t, v, got, "sample %d", i)
		// swapping back the raw register value recovers the sample
		require.Equal(t, v, core.SwapBytes(uint16(out[2*i+1])<<8|uint16(out[2*i])))
	}
}

func TestLDMARejectsRelativeStart(t *testing.T) {
	b := NewBoard(DefaultClock)
	chain := core.Chain{{SrcMode: core.AddrRel, XferCount: 3}}
	err := b.LDMA.StartTransfer(core.SerialDMAChannel, core.TransferConfig{}, chain)
	assert.ErrorIs(t, err, ErrRelativeStart)
	assert.Error(t, b.LDMA.StartTransfer(9, core.TransferConfig{}, core.Chain{{}}))
}

func TestLDMACaptureRingWraps(t *testing.T) {
	b := NewBoard(DefaultClock)
	b.LDMA.Init()
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 4
	cfg.SamplesPerBatch = 8
	require.NoError(t, b.ADC.InitScan(core.ScanConfig{DataValid: 4, FIFOOverwrite: true}))

	bufs := [2][]uint16{make([]uint16, 8), make([]uint16, 8)}
	addrs := [2]uint32{b.LDMA.AddressOf(bufs[0]), b.LDMA.AddressOf(bufs[1])}
	ring, err := core.BuildCaptureRing(addrs, ADC0ScanData, cfg)
	require.NoError(t, err)

	var completions int
	b.LDMA.SetIRQHandler(func() {
		pending := b.LDMA.IntGetEnabled()
		b.LDMA.IntClear(pending)
		completions++
	})
	b.LDMA.IntEnable(core.ChannelMask(core.MicDMAChannel))
	require.NoError(t, b.LDMA.StartTransfer(core.MicDMAChannel, core.TransferConfig{Signal: core.SignalADC0Scan}, ring))

	for i := 0; i < 24; i++ {
		b.ADC.Trigger()
	}
	assert.Equal(t, 3, completions)
	assert.True(t, b.LDMA.Enabled(core.MicDMAChannel))
	// Third pass overwrote buffer 1 with samples 16..23.
	assert.Equal(t, []uint16{16, 17, 18, 19, 20, 21, 22, 23}, bufs[0])
	assert.Equal(t, []uint16{8, 9, 10, 11, 12, 13, 14, 15}, bufs[1])
}

func TestLDMABusFaultRaisesError(t *testing.T) {
	b := NewBoard(DefaultClock)
	b.LDMA.Init()
	faults := 0
	b.LDMA.SetIRQHandler(func() {
		if b.LDMA.IntGetEnabled()&core.LDMAIntError != 0 {
			faults++
			b.LDMA.IntClear(core.LDMAIntError)
		}
	})
	chain := core.Chain{{XferCount: 1, Size: core.SizeHalf, Src: 0x30000000, Dst: USART0TxDouble, DstInc: core.IncNone}}
	require.NoError(t, b.LDMA.StartTransfer(core.SerialDMAChannel, core.TransferConfig{Signal: core.SignalUSART0TXBL}, chain))
	b.USART.Pump(1)
	assert.Equal(t, 1, faults)
	assert.ErrorIs(t, b.LDMA.LastFault, ErrBusFault)
	assert.False(t, b.LDMA.Enabled(core.SerialDMAChannel))
}

func TestADCFIFOOverflow(t *testing.T) {
	b := NewBoard(DefaultClock)
	require.NoError(t, b.ADC.InitScan(core.ScanConfig{DataValid: 4, FIFOOverwrite: true}))
	for i := 0; i < 6; i++ {
		b.ADC.Trigger()
	}
	assert.Equal(t, ADCFIFODepth, b.ADC.Pending())
	assert.Equal(t, uint64(2), b.ADC.Overflows)
	// Overwrite keeps the newest samples.
	assert.Equal(t, uint16(2), b.ADC.Read16())

	assert.Error(t, b.ADC.InitScan(core.ScanConfig{DataValid: 0}))
}

func TestMemoryMapping(t *testing.T) {
	m := NewMemory()
	a := make([]uint16, 3)
	c := make([]uint16, 2)
	addrA := m.Map(a)
	addrC := m.Map(c)
	assert.Equal(t, uint32(RAMBase), addrA)
	assert.Equal(t, addrA, m.Map(a))
	assert.Greater(t, addrC, addrA+uint32(len(a))*2-1)
	assert.Zero(t, addrC&3)

	require.NoError(t, m.Write16(addrA+4, 0xBEEF))
	assert.Equal(t, uint16(0xBEEF), a[2])
	v, err := m.Read16(addrC + 2)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = m.Read16(addrA + 1)
	assert.ErrorIs(t, err, ErrBusFault)
	assert.ErrorIs(t, m.Write16(addrA+6, 1), ErrBusFault)
}
