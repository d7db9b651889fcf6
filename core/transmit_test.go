package core

import (
	"errors"
	"testing"
)

func TestBuildTransmitLoopLarge(t *testing.T) {
	chain, loops, err := BuildTransmitLoop(0x20000000, 0x4001003C, 10240)
	if err != nil {
		t.Fatalf("BuildTransmitLoop: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length %d, want 2", len(chain))
	}
	if loops != 3 {
		t.Errorf("loop count %d, want 3", loops)
	}

	first, loop := chain[0], chain[1]
	if first.SrcMode != AddrAbs || first.Src != 0x20000000 {
		t.Errorf("first descriptor must start at the absolute buffer address")
	}
	if !first.Link || first.Next != 1 || first.DecLoopCount {
		t.Errorf("first descriptor link: %+v", first)
	}
	if loop.SrcMode != AddrRel || loop.Src != 0 {
		t.Errorf("loop descriptor must continue relative to the previous pass")
	}
	if !loop.DecLoopCount || loop.Next != 1 || loop.Link {
		t.Errorf("loop descriptor: %+v", loop)
	}
	for i, d := range chain {
		if !d.ByteSwap || d.DstInc != IncNone || d.SrcInc != IncOne || d.Size != SizeHalf {
			t.Errorf("desc %d: transfer settings %+v", i, d)
		}
		if d.Dst != 0x4001003C || d.DstMode != AddrAbs {
			t.Errorf("desc %d: dst %#x", i, d.Dst)
		}
		if d.Units() != MaxTransferUnits {
			t.Errorf("desc %d: units %d", i, d.Units())
		}
	}

	// One pass for the first descriptor plus loops+1 for the second.
	total := chain[0].Units() + int(loops+1)*chain[1].Units()
	if total != 10240 {
		t.Errorf("units sent: %d", total)
	}
}

func TestBuildTransmitLoopSizes(t *testing.T) {
	tests := []struct {
		units  int
		descs  int
		loops  uint8
		errSet bool
	}{
		{1, 1, 0, false},
		{2048, 1, 0, false},
		{4096, 2, 0, false},
		{6144, 2, 1, false},
		{2049, 0, 0, true},
		{0, 0, 0, true},
		{-4, 0, 0, true},
		{2048 * 257, 2, 0xFF, false},
		{2048 * 258, 0, 0, true},
	}
	for _, tt := range tests {
		chain, loops, err := BuildTransmitLoop(0x20000000, 0x4001003C, tt.units)
		if tt.errSet {
			if !errors.Is(err, ErrTransmitSize) {
				t.Errorf("%d units: got %v, want ErrTransmitSize", tt.units, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%d units: %v", tt.units, err)
			continue
		}
		if len(chain) != tt.descs || loops != tt.loops {
			t.Errorf("%d units: %d descriptors, loop %d", tt.units, len(chain), loops)
		}
	}
}

func TestTransmitEngine(t *testing.T) {
	dma := newMockDMA()
	done := 0
	e := NewTransmitEngine(dma, mockSerial{}, func() { done++ })

	buf := make([]uint16, 10240)
	if err := e.Start(buf); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !e.Busy() {
		t.Errorf("not busy after Start")
	}
	if err := e.Start(buf); !errors.Is(err, ErrTransmitBusy) {
		t.Errorf("second Start: %v", err)
	}
	s := dma.starts[0]
	if s.ch != SerialDMAChannel || s.cfg.Signal != SignalUSART0TXBL || s.cfg.LoopCount != 3 {
		t.Errorf("transfer start: ch=%d cfg=%+v", s.ch, s.cfg)
	}
	if dma.enable&ChannelMask(SerialDMAChannel) == 0 {
		t.Errorf("channel interrupt not enabled")
	}

	e.HandleDone()
	if done != 1 || e.Busy() || e.Blocks != 1 {
		t.Errorf("after done: callbacks=%d busy=%v blocks=%d", done, e.Busy(), e.Blocks)
	}
	// Spurious completion is ignored.
	e.HandleDone()
	if done != 1 {
		t.Errorf("spurious completion delivered")
	}
}

func TestTransmitEngineStartFailure(t *testing.T) {
	dma := newMockDMA()
	dma.failOn = SerialDMAChannel + 1
	e := NewTransmitEngine(dma, mockSerial{}, nil)
	if err := e.Start(make([]uint16, 16)); err == nil {
		t.Fatalf("expected start failure")
	}
	if e.Busy() {
		t.Errorf("busy after failed start")
	}
	if err := e.Start(make([]uint16, 3000)); !errors.Is(err, ErrTransmitSize) {
		t.Errorf("odd size: %v", err)
	}
}
