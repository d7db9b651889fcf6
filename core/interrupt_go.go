//go:build !tinygo

package core

// irqState stands in for the saved PRIMASK when running hosted (tests, sim)
type irqState uintptr

// disableInterrupts is a no-op when hosted; the sim delivers interrupts
// synchronously on the caller's goroutine.
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op when hosted
func restoreInterrupts(irqState) {}
