package core

import (
	"context"
	"sync/atomic"
)

// ReadyCell is the single-slot hand-off between the capture interrupt
// (writer) and the consumer loop (reader). Only one filled buffer can be
// outstanding.
type ReadyCell struct {
	full    uint32 // atomic; payload is published before full is set
	buffer  BufferID
	samples []uint16
}

// Publish stores a filled buffer. It returns false if the previous one has
// not been taken yet.
func (c *ReadyCell) Publish(id BufferID, samples []uint16) bool {
	if atomic.LoadUint32(&c.full) != 0 {
		return false
	}
	c.buffer = id
	c.samples = samples
	atomic.StoreUint32(&c.full, 1)
	return true
}

// Take removes the pending buffer, if any.
func (c *ReadyCell) Take() (BufferID, []uint16, bool) {
	if atomic.LoadUint32(&c.full) == 0 {
		return 0, nil, false
	}
	id, samples := c.buffer, c.samples
	c.samples = nil
	atomic.StoreUint32(&c.full, 0)
	return id, samples, true
}

// Pending reports whether a buffer is waiting.
func (c *ReadyCell) Pending() bool {
	return atomic.LoadUint32(&c.full) != 0
}

// Reset drops any pending buffer.
func (c *ReadyCell) Reset() {
	c.samples = nil
	atomic.StoreUint32(&c.full, 0)
}

// StreamStats counts consumer loop activity.
type StreamStats struct {
	Polls      uint32
	Blocks     uint32
	LastBuffer BufferID
}

// Streamer is the consumer loop: it polls for filled buffers and hands
// each one to the transmit engine.
type Streamer struct {
	p *Pipeline

	// Idle runs on every poll that found nothing to do.
	Idle func()

	Stats StreamStats
}

// NewStreamer creates a consumer loop for p.
func NewStreamer(p *Pipeline) *Streamer {
	return &Streamer{p: p}
}

// Poll runs one loop iteration. It reports whether a buffer was handed to
// the transmit engine. Any error ends the current run.
func (s *Streamer) Poll() (bool, error) {
	s.Stats.Polls++
	if err := s.p.Err(); err != nil {
		return false, err
	}
	id, samples, ok := s.p.ready.Take()
	if !ok {
		return false, nil
	}
	if err := s.p.transmit.Start(samples); err != nil {
		state := disableInterrupts()
		s.p.failure.set(err)
		restoreInterrupts(state)
		return false, err
	}
	s.Stats.Blocks++
	s.Stats.LastBuffer = id
	return true, nil
}

// Run starts sampling and polls until an error or ctx is done. Sampling is
// stopped on return; the caller decides whether to Run again.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.p.StartSampling(); err != nil {
		return err
	}
	defer s.p.StopSampling()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		handed, err := s.Poll()
		if err != nil {
			DebugPrintln("[MIC] run ended after " + itoa(int(s.Stats.Blocks)) + " blocks: " + err.Error())
			return err
		}
		if !handed && s.Idle != nil {
			s.Idle()
		}
	}
}
