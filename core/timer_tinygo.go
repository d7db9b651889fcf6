//go:build tinygo

package core

import "sync/atomic"

// getSystemTicks reads the event clock; the LDMA handler stamps events
// with it, so access is atomic.
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// setSystemTicks stores the event clock
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}
