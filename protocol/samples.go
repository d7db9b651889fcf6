package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrOddLength   = errors.New("protocol: stream length is not a whole number of samples")
	ErrSampleRange = errors.New("protocol: sample exceeds ADC range")
)

// EncodeSamples appends the wire form of samples to dst.
func EncodeSamples(dst []byte, samples []uint16) []byte {
	for _, s := range samples {
		dst = binary.BigEndian.AppendUint16(dst, s)
	}
	return dst
}

// DecodeSamples converts wire bytes to samples. data must hold a whole
// number of samples.
func DecodeSamples(data []byte) ([]uint16, error) {
	if len(data)%SampleBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}
	out := make([]uint16, len(data)/SampleBytes)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[i*SampleBytes:])
	}
	return out, nil
}

// CheckRange returns the index of the first sample with bits above the ADC
// resolution set, which on a live stream means the byte alignment slipped.
func CheckRange(samples []uint16) error {
	for i, s := range samples {
		if s&SampleMask != 0 {
			return fmt.Errorf("%w: sample %d = %#04x", ErrSampleRange, i, s)
		}
	}
	return nil
}
