package core

import (
	"strings"
	"testing"
)

func TestEventClock(t *testing.T) {
	defer SetTime(0)
	defer SetClockFreq(DefaultClockFreq)

	SetTime(100)
	AdvanceTime(23)
	if GetTime() != 123 {
		t.Fatalf("GetTime = %d, want 123", GetTime())
	}

	SetClockFreq(2000)
	SetClockFreq(0) // ignored
	if ClockFreq() != 2000 {
		t.Fatalf("ClockFreq = %d", ClockFreq())
	}
	if got := TicksToUS(3); got != 1500 {
		t.Errorf("TicksToUS(3) = %d, want 1500", got)
	}
}

func TestEventsUseClock(t *testing.T) {
	defer SetTime(0)
	ClearEventRing()
	SetTime(77)
	RecordEvent(EvtStart, 0, 0, 0)
	evts := Events()
	if len(evts) != 1 || evts[0].Clock != 77 {
		t.Fatalf("events = %+v", evts)
	}
	ClearEventRing()
}

func TestDumpEventRingPrintsMicroseconds(t *testing.T) {
	defer SetTime(0)
	defer SetClockFreq(DefaultClockFreq)
	defer SetDebugWriter(nil)
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetClockFreq(8000)
	ClearEventRing()
	defer ClearEventRing()

	SetTime(16)
	RecordEvent(EvtCaptureDone, uint8(Buffer1), 0, 0)
	DumpEventRing()

	found := false
	for _, l := range lines {
		if strings.Contains(l, "clock=16 us=2000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("dump missing microsecond stamp: %q", lines)
	}
}
