package core

import (
	"errors"
	"fmt"
)

// TimerMaxTop is the largest TOP value of the 16-bit TIMER0.
const TimerMaxTop = 0xFFFF

var ErrSampleRate = errors.New("sample timer: rate not reachable from reference clock")

// TopValue computes the timer TOP for a sample rate from the reference clock.
func TopValue(clockHz, rate uint32) (uint32, error) {
	if rate == 0 || clockHz == 0 {
		return 0, ErrSampleRate
	}
	top := clockHz / rate
	if top == 0 || top > TimerMaxTop {
		return 0, fmt.Errorf("%w: clock=%d rate=%d", ErrSampleRate, clockHz, rate)
	}
	return top, nil
}

// SampleTimer gates acquisition: each overflow triggers one ADC conversion
// through PRS, without a CPU interrupt.
type SampleTimer struct {
	hw      RateTimer
	rate    uint32
	top     uint32
	enabled bool
}

// NewSampleTimer wraps a hardware timer for the given sample rate.
func NewSampleTimer(hw RateTimer, rate uint32) *SampleTimer {
	return &SampleTimer{hw: hw, rate: rate}
}

// Configure computes TOP from the timer clock and leaves the timer stopped.
// Clocks must be set up before this is called.
func (s *SampleTimer) Configure() error {
	top, err := TopValue(s.hw.ClockFreq(), s.rate)
	if err != nil {
		return err
	}
	s.hw.Enable(false)
	s.enabled = false
	s.hw.SetTop(top)
	s.top = top
	return nil
}

// Enable starts or stops trigger generation.
func (s *SampleTimer) Enable(on bool) {
	s.hw.Enable(on)
	s.enabled = on
}

func (s *SampleTimer) Enabled() bool { return s.enabled }

func (s *SampleTimer) Top() uint32 { return s.top }

func (s *SampleTimer) Rate() uint32 { return s.rate }
