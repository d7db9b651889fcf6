package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	n := fifo.Write([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, fifo.Available())
	assert.Equal(t, 4, fifo.Free())

	out := make([]byte, 3)
	assert.Equal(t, 3, fifo.Read(out))
	assert.Equal(t, []byte{1, 2, 3}, out)

	// Wrap around the end of the backing array.
	assert.Equal(t, 7, fifo.Write([]byte{6, 7, 8, 9, 10, 11, 12, 13}))
	assert.Equal(t, 9, fifo.Available())
	assert.Zero(t, fifo.Free())

	fifo.Pop(2)
	out = make([]byte, 10)
	n = fifo.Read(out)
	assert.Equal(t, []byte{6, 7, 8, 9, 10, 11, 12}, out[:n])
	assert.True(t, fifo.IsEmpty())

	fifo.Write([]byte{1})
	fifo.Reset()
	assert.True(t, fifo.IsEmpty())
}

func TestAssemblerSplitsStream(t *testing.T) {
	var got [][]uint16
	var seqs []uint64
	a, err := NewAssembler(4, func(seq uint64, samples []uint16, raw []byte) {
		assert.Len(t, raw, 8)
		got = append(got, append([]uint16(nil), samples...))
		seqs = append(seqs, seq)
	})
	require.NoError(t, err)

	stream := EncodeSamples(nil, []uint16{0, 1, 2, 3, 4, 5, 6, 7, 0xFFF, 0x800})
	// Deliver in awkward chunks, splitting samples across reads.
	assert.Equal(t, 0, a.Feed(stream[:3]))
	assert.Equal(t, 1, a.Feed(stream[3:11]))
	assert.Equal(t, 1, a.Feed(stream[11:]))

	require.Len(t, got, 2)
	assert.Equal(t, []uint16{0, 1, 2, 3}, got[0])
	assert.Equal(t, []uint16{4, 5, 6, 7}, got[1])
	assert.Equal(t, []uint64{0, 1}, seqs)
	assert.Equal(t, 4, a.Pending())
	assert.Equal(t, uint64(2), a.Blocks())
	assert.Zero(t, a.RangeErrors)

	a.Resync()
	assert.Zero(t, a.Pending())
}

func TestAssemblerLargeFeed(t *testing.T) {
	blocks := 0
	a, err := NewAssembler(3, func(uint64, []uint16, []byte) { blocks++ })
	require.NoError(t, err)
	samples := make([]uint16, 30)
	assert.Equal(t, 10, a.Feed(EncodeSamples(nil, samples)))
	assert.Equal(t, 10, blocks)
	assert.Zero(t, a.Dropped)
}

func TestAssemblerDetectsMisalignment(t *testing.T) {
	a, err := NewAssembler(2, nil)
	require.NoError(t, err)
	stream := EncodeSamples(nil, []uint16{0x0ABC, 0x0DEF, 0x0123, 0x0456})
	// Losing one byte shifts every sample by a byte.
	a.Feed(stream[1:])
	assert.Equal(t, uint64(1), a.RangeErrors)

	_, err = NewAssembler(0, nil)
	assert.ErrorIs(t, err, ErrBlockSize)
}

func TestAssemblerSkipRealigns(t *testing.T) {
	var got [][]uint16
	a, err := NewAssembler(2, func(_ uint64, samples []uint16, _ []byte) {
		got = append(got, append([]uint16(nil), samples...))
	})
	require.NoError(t, err)

	stream := EncodeSamples([]byte{0x5A}, []uint16{0x0ABC, 0x0DEF})
	assert.Zero(t, a.Feed(stream[:3]))
	assert.Equal(t, 3, a.Pending())
	assert.Equal(t, 1, a.Skip(1))
	assert.Equal(t, 1, a.Feed(stream[3:]))
	require.Len(t, got, 1)
	assert.Equal(t, []uint16{0x0ABC, 0x0DEF}, got[0])
	assert.Zero(t, a.RangeErrors)

	assert.Zero(t, a.Skip(4))
	assert.Zero(t, a.Pending())
}
