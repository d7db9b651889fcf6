package core

import (
	"errors"
	"testing"
)

func TestTopValue(t *testing.T) {
	tests := []struct {
		clock, rate uint32
		want        uint32
		ok          bool
	}{
		{16000000, 2000, 8000, true},
		{38000000, 2000, 19000, true},
		{38000000, 500, 0, false}, // 76000 does not fit 16 bits
		{16000000, 0, 0, false},
		{0, 2000, 0, false},
		{1000, 2000, 0, false},
	}
	for _, tt := range tests {
		top, err := TopValue(tt.clock, tt.rate)
		if tt.ok {
			if err != nil || top != tt.want {
				t.Errorf("TopValue(%d, %d) = %d, %v; want %d", tt.clock, tt.rate, top, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrSampleRate) {
			t.Errorf("TopValue(%d, %d): got %v, want ErrSampleRate", tt.clock, tt.rate, err)
		}
	}
}

func TestSampleTimerConfigure(t *testing.T) {
	hw := &mockTimer{freq: 16000000, enabled: true}
	st := NewSampleTimer(hw, 2000)
	if err := st.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if hw.enabled || st.Enabled() {
		t.Errorf("timer left running after Configure")
	}
	if hw.top != 8000 || st.Top() != 8000 || st.Rate() != 2000 {
		t.Errorf("top hw=%d st=%d rate=%d", hw.top, st.Top(), st.Rate())
	}

	st.Enable(true)
	if !hw.enabled || !st.Enabled() {
		t.Errorf("Enable(true) did not start the timer")
	}
	st.Enable(false)
	if hw.enabled {
		t.Errorf("Enable(false) did not stop the timer")
	}

	bad := NewSampleTimer(&mockTimer{freq: 16000000}, 100)
	if err := bad.Configure(); !errors.Is(err, ErrSampleRate) {
		t.Errorf("unreachable rate: %v", err)
	}
}
