package core

// Test doubles for the pipeline ports. They record calls instead of moving
// data; pipeline behaviour against a data-moving LDMA is covered in sim.

type mockStart struct {
	ch    uint8
	cfg   TransferConfig
	chain Chain
}

type mockDMA struct {
	flags   uint32
	enable  uint32
	stopped uint32
	inits   int
	starts  []mockStart
	cleared []uint32
	addrs   map[*uint16]uint32
	next    uint32
	failOn  uint8 // channel number + 1 whose StartTransfer fails
}

func newMockDMA() *mockDMA {
	return &mockDMA{addrs: make(map[*uint16]uint32), next: 0x20000000}
}

func (m *mockDMA) Init() {
	m.inits++
	m.enable = LDMAIntError
}

func (m *mockDMA) StartTransfer(ch uint8, cfg TransferConfig, chain Chain) error {
	if m.failOn == ch+1 {
		return ErrBadLink
	}
	if err := chain.Validate(); err != nil {
		return err
	}
	m.starts = append(m.starts, mockStart{ch: ch, cfg: cfg, chain: chain})
	m.stopped &^= ChannelMask(ch)
	return nil
}

func (m *mockDMA) StopTransfer(mask uint32) { m.stopped |= mask }

func (m *mockDMA) IntEnable(mask uint32) { m.enable |= mask }

func (m *mockDMA) IntDisable(mask uint32) { m.enable &^= mask }

func (m *mockDMA) IntGetEnabled() uint32 { return m.flags & m.enable }

func (m *mockDMA) IntClear(mask uint32) {
	m.cleared = append(m.cleared, mask)
	m.flags &^= mask
}

func (m *mockDMA) AddressOf(buf []uint16) uint32 {
	if len(buf) == 0 {
		return 0
	}
	if a, ok := m.addrs[&buf[0]]; ok {
		return a
	}
	a := m.next
	m.addrs[&buf[0]] = a
	m.next += uint32(len(buf)) * 2
	return a
}

type mockSource struct {
	cfg     ScanConfig
	cleared int
}

func (s *mockSource) InitScan(cfg ScanConfig) error {
	s.cfg = cfg
	return nil
}

func (s *mockSource) ScanDataAddress() uint32 { return 0x4000204C }

func (s *mockSource) ClearFIFO() { s.cleared++ }

type mockSerial struct{}

func (mockSerial) TxDoubleAddress() uint32 { return 0x4001003C }

type mockTimer struct {
	freq    uint32
	top     uint32
	enabled bool
	history []bool
}

func (t *mockTimer) ClockFreq() uint32 { return t.freq }

func (t *mockTimer) SetTop(top uint32) { t.top = top }

func (t *mockTimer) Enable(on bool) {
	t.enabled = on
	t.history = append(t.history, on)
}

func mockPorts() (Ports, *mockDMA, *mockTimer) {
	dma := newMockDMA()
	timer := &mockTimer{freq: 16000000}
	return Ports{DMA: dma, Source: &mockSource{}, Serial: mockSerial{}, Timer: timer}, dma, timer
}
