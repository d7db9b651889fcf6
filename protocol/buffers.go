package protocol

import "errors"

// FifoBuffer is a circular byte buffer between the serial reader and the
// block assembler.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count written.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// Read moves up to len(data) bytes out of the buffer.
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		n++
	}
	return n
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written.
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Pop discards n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}

var ErrBlockSize = errors.New("protocol: block size must be positive")

// BlockFunc receives each assembled block. samples is only valid during
// the call.
type BlockFunc func(seq uint64, samples []uint16, raw []byte)

// Assembler cuts the unframed serial stream into capture-sized blocks.
type Assembler struct {
	fifo    *FifoBuffer
	raw     []byte
	samples []uint16
	seq     uint64
	emit    BlockFunc

	// Dropped counts bytes lost because the FIFO was full.
	Dropped uint64
	// RangeErrors counts blocks with samples outside the ADC range.
	RangeErrors uint64
}

// NewAssembler creates an assembler for blocks of blockSamples samples.
func NewAssembler(blockSamples int, emit BlockFunc) (*Assembler, error) {
	if blockSamples <= 0 {
		return nil, ErrBlockSize
	}
	blockBytes := blockSamples * SampleBytes
	return &Assembler{
		fifo:    NewFifoBuffer(2*blockBytes + 1),
		raw:     make([]byte, blockBytes),
		samples: make([]uint16, blockSamples),
		emit:    emit,
	}, nil
}

// Feed buffers data and emits every block it completes. It returns the
// number of blocks emitted.
func (a *Assembler) Feed(data []byte) int {
	blocks := 0
	for len(data) > 0 {
		if a.fifo.Free() == 0 {
			// cannot happen with a FIFO larger than one block
			a.Dropped += uint64(len(data))
			break
		}
		n := a.fifo.Write(data)
		data = data[n:]
		for a.fifo.Available() >= len(a.raw) {
			a.fifo.Read(a.raw)
			a.emitBlock()
			blocks++
		}
	}
	return blocks
}

func (a *Assembler) emitBlock() {
	for i := range a.samples {
		a.samples[i] = uint16(a.raw[2*i])<<8 | uint16(a.raw[2*i+1])
	}
	if CheckRange(a.samples) != nil {
		a.RangeErrors++
	}
	seq := a.seq
	a.seq++
	if a.emit != nil {
		a.emit(seq, a.samples, a.raw)
	}
}

// Pending returns the bytes of an incomplete block.
func (a *Assembler) Pending() int {
	if a.fifo.IsEmpty() {
		return 0
	}
	return a.fifo.Available()
}

// Resync drops the partial block, e.g. after the board restarted sampling.
func (a *Assembler) Resync() {
	a.fifo.Reset()
}

// Skip drops up to n buffered bytes, shifting the block boundary. It
// returns the number dropped.
func (a *Assembler) Skip(n int) int {
	if avail := a.fifo.Available(); n > avail {
		n = avail
	}
	a.fifo.Pop(n)
	return n
}

// Blocks returns how many blocks have been emitted.
func (a *Assembler) Blocks() uint64 {
	return a.seq
}
