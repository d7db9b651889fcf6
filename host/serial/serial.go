// Package serial opens the smnt-mb USART as seen from the host (usually a
// USB-UART bridge).
package serial

import (
	"io"
	"time"

	"smntmb/config"
)

// Port is the receive side of the board's serial line.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything buffered by the driver, so reading starts on
	// fresh data after the board restarted sampling.
	Flush() error

	// Device returns the path the port was opened on.
	Device() string
}

// Config holds serial port settings.
type Config struct {
	// Device path (e.g. "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the board's USART0
	Baud int

	// ReadTimeout bounds a single Read; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the smnt-mb line settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        config.DefaultBaud,
		ReadTimeout: config.DefaultReadTimeout * time.Millisecond,
	}
}

// FromReceiver builds a port configuration from the receiver settings.
func FromReceiver(rc config.ReceiverConfig) *Config {
	return &Config{
		Device:      rc.Device,
		Baud:        rc.Baud,
		ReadTimeout: time.Duration(rc.ReadTimeoutMs) * time.Millisecond,
	}
}
