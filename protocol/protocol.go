// Package protocol decodes the smnt-mb microphone stream.
//
// The board writes raw 12-bit ADC samples to its USART, two bytes per
// sample, most significant byte first. There is no framing: block
// boundaries are agreed on out of band (the capture batch size).
package protocol

// Version of the stream format and block records.
const Version = "1.0.0"

// Stream constants
const (
	SampleBytes = 2      // bytes per sample on the wire
	SampleBits  = 12     // ADC resolution
	SampleMax   = 0x0FFF // largest valid sample
	SampleMask  = 0xF000 // bits that are always clear on the wire

	// DefaultBlockSamples matches the firmware capture batch.
	DefaultBlockSamples = 10240
)
