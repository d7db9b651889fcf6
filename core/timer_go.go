//go:build !tinygo

package core

// getSystemTicks reads the event clock (host build, single goroutine)
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks stores the event clock
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
