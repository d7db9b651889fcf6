//go:build tinygo

package core

import "runtime/interrupt"

type irqState = interrupt.State

// disableInterrupts masks interrupts so the LDMA handler cannot run while
// the consumer touches hand-off state; returns the previous mask.
func disableInterrupts() irqState {
	return interrupt.Disable()
}

// restoreInterrupts restores the saved mask
func restoreInterrupts(state irqState) {
	interrupt.Restore(state)
}
