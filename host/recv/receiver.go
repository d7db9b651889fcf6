// Package recv turns the raw serial stream from the board into sample
// blocks and fans them out to sinks.
package recv

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"smntmb/protocol"
)

// Options configures a Receiver.
type Options struct {
	BlockSamples int
	SampleRate   uint32
	Device       string

	// StopOnEOF ends Run at end of input (replaying a recording). A serial
	// port reports read timeouts as EOF, so live capture leaves it unset.
	StopOnEOF bool

	// ReadSize is the chunk size of a single Read.
	ReadSize int
}

// Stats counts receiver activity.
type Stats struct {
	Bytes       uint64
	Blocks      uint64
	RangeErrors uint64
	SinkErrors  uint64
	LastBlockAt time.Time

	// Bias and PeakToPeak describe the last block in raw ADC counts.
	Bias       float64
	PeakToPeak uint16
}

// Receiver reads from src and emits SampleBlocks.
type Receiver struct {
	opts Options
	src  io.Reader
	asm  *protocol.Assembler

	// writeMu orders sink writes against sink replacement; take it before mu.
	writeMu sync.Mutex

	mu    sync.Mutex
	sinks map[string]Sink
	stats Stats
	out   []*protocol.SampleBlock // assembled by the current feed

	now func() time.Time
}

// New creates a receiver reading from src.
func New(src io.Reader, opts Options) (*Receiver, error) {
	if opts.BlockSamples == 0 {
		opts.BlockSamples = protocol.DefaultBlockSamples
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = 4096
	}
	r := &Receiver{
		opts:  opts,
		src:   src,
		sinks: make(map[string]Sink),
		now:   time.Now,
	}
	asm, err := protocol.NewAssembler(opts.BlockSamples, r.onBlock)
	if err != nil {
		return nil, err
	}
	r.asm = asm
	return r, nil
}

// AddSink attaches a sink under name, replacing any sink of that name.
func (r *Receiver) AddSink(name string, s Sink) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	old := r.sinks[name]
	r.sinks[name] = s
	r.mu.Unlock()
	if old != nil {
		closeSink(name, old)
	}
}

// RemoveSink detaches and closes a sink. It reports whether it existed.
func (r *Receiver) RemoveSink(name string) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	s, ok := r.sinks[name]
	delete(r.sinks, name)
	r.mu.Unlock()
	if ok {
		closeSink(name, s)
	}
	return ok
}

// SinkNames lists the attached sinks.
func (r *Receiver) SinkNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	return names
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Resync drops a partial block. Call it when the board restarts sampling.
func (r *Receiver) Resync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.asm.Pending(); n > 0 {
		glog.Warningf("resync: dropping %d bytes of partial block", n)
	}
	r.asm.Resync()
}

// Skip drops n bytes of the stream to realign on a sample boundary after a
// byte was lost. It returns how many buffered bytes were dropped.
func (r *Receiver) Skip(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.asm.Skip(n)
}

// Run reads until ctx is done, the source fails, or (with StopOnEOF) the
// input ends. Sinks are closed on return.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.closeAll()
	buf := make([]byte, r.opts.ReadSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.src.Read(buf)
		if n > 0 {
			r.feed(buf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if r.opts.StopOnEOF {
				if p := r.asm.Pending(); p > 0 {
					glog.Warningf("input ended inside a block, %d bytes unused", p)
				}
				return nil
			}
		default:
			glog.Errorf("read %s: %v", r.opts.Device, err)
			return err
		}
	}
}

type namedSink struct {
	name string
	sink Sink
}

// feed assembles data under mu, then writes the finished blocks with mu
// released so a slow sink does not stall Stats or the shell.
func (r *Receiver) feed(data []byte) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	r.stats.Bytes += uint64(len(data))
	r.asm.Feed(data)
	blocks := r.out
	r.out = nil
	sinks := make([]namedSink, 0, len(r.sinks))
	for name, s := range r.sinks {
		sinks = append(sinks, namedSink{name, s})
	}
	r.mu.Unlock()

	var failed uint64
	for _, blk := range blocks {
		for _, ns := range sinks {
			if err := ns.sink.WriteBlock(blk); err != nil {
				failed++
				glog.Errorf("sink %s: %v", ns.name, err)
			}
		}
	}
	if failed > 0 {
		r.mu.Lock()
		r.stats.SinkErrors += failed
		r.mu.Unlock()
	}
}

// onBlock runs under r.mu from feed.
func (r *Receiver) onBlock(seq uint64, samples []uint16, raw []byte) {
	at := r.now()
	if protocol.CheckRange(samples) != nil {
		r.stats.RangeErrors++
		glog.Warningf("block %d has out-of-range samples, stream may be misaligned", seq)
	}
	r.stats.Blocks++
	r.stats.LastBlockAt = at
	r.stats.Bias = protocol.Mean(samples)
	r.stats.PeakToPeak = protocol.PeakToPeak(samples)
	if glog.V(2) {
		glog.Infof("block %d: %d samples, bias %.1f, p-p %d", seq, len(samples), r.stats.Bias, r.stats.PeakToPeak)
	}
	r.out = append(r.out, protocol.NewSampleBlock(seq, r.opts.SampleRate, raw, r.opts.Device, at))
}

func (r *Receiver) closeAll() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[string]Sink)
	r.mu.Unlock()
	for name, s := range sinks {
		closeSink(name, s)
	}
}

func closeSink(name string, s Sink) {
	if err := s.Close(); err != nil {
		glog.Warningf("close sink %s: %v", name, err)
	}
}
